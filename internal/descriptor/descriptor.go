// Package descriptor loads the Topology and Application JSON descriptors
// binding them onto internal/model types. This
// is the minimal glue kept in scope: argument parsing and
// container runtime control stay out, but file loading for the two
// descriptors that drive the core does not.
package descriptor

import (
	"encoding/json"
	"fmt"
	"os"

	"edgeorch/internal/model"
	"edgeorch/pkg/apperror"
)

// topologyFile mirrors the topology descriptor's wire shape:
//
//	{ "IoTtopology": { "nodes": [ { "id": <int>, "ip": "proto://host:port", "failure": <real> }, … ] } }
type topologyFile struct {
	IoTtopology struct {
		Nodes []struct {
			ID      int64   `json:"id"`
			IP      string  `json:"ip"`
			Failure float64 `json:"failure"`
		} `json:"nodes"`
	} `json:"IoTtopology"`
}

// applicationFile mirrors the application descriptor's wire shape.
type applicationFile struct {
	IoTapplication struct {
		SLA struct {
			Availability float64 `json:"availability"`
			E2E          int64   `json:"e2e"`
		} `json:"SLA"`
		Microservices []struct {
			ID            string `json:"id"`
			RAM           int64  `json:"RAM"`
			HDD           int64  `json:"HDD"`
			ContainerPort string `json:"container_port"`
			ExternalPort  string `json:"external_port"`
			Dest          []struct {
				ID string `json:"id"`
			} `json:"dest"`
		} `json:"microservices"`
	} `json:"IoTapplication"`
}

// LoadTopology reads and validates a topology descriptor from path.
func LoadTopology(path string) ([]model.Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMalformedDescriptor, "failed to read topology file").
			WithField(path)
	}

	var tf topologyFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMalformedDescriptor, "invalid topology JSON").
			WithField(path)
	}

	if len(tf.IoTtopology.Nodes) == 0 {
		return nil, apperror.New(apperror.CodeMalformedDescriptor, "topology has no nodes").WithField(path)
	}

	nodes := make([]model.Node, 0, len(tf.IoTtopology.Nodes))
	for _, n := range tf.IoTtopology.Nodes {
		if n.IP == "" {
			return nil, apperror.New(apperror.CodeMalformedDescriptor,
				fmt.Sprintf("node %d is missing ip", n.ID))
		}
		if n.Failure < 0 || n.Failure >= 1 {
			return nil, apperror.New(apperror.CodeMalformedDescriptor,
				fmt.Sprintf("node %d has out-of-range failure probability %v", n.ID, n.Failure))
		}
		nodes = append(nodes, model.Node{
			ID:          model.NodeID(n.ID),
			URL:         n.IP,
			FailureProb: n.Failure,
		})
	}
	return nodes, nil
}

// LoadApplication reads and validates an application descriptor from path.
func LoadApplication(path string) (model.Application, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Application{}, apperror.Wrap(err, apperror.CodeMalformedDescriptor, "failed to read application file").
			WithField(path)
	}

	var af applicationFile
	if err := json.Unmarshal(raw, &af); err != nil {
		return model.Application{}, apperror.Wrap(err, apperror.CodeMalformedDescriptor, "invalid application JSON").
			WithField(path)
	}

	if len(af.IoTapplication.Microservices) == 0 {
		return model.Application{}, apperror.New(apperror.CodeMalformedDescriptor, "application has no microservices").WithField(path)
	}
	if af.IoTapplication.SLA.Availability <= 0 || af.IoTapplication.SLA.Availability >= 1 {
		if af.IoTapplication.SLA.Availability != 0 {
			return model.Application{}, apperror.New(apperror.CodeMalformedDescriptor,
				fmt.Sprintf("SLA.availability out of range (0,1): %v", af.IoTapplication.SLA.Availability))
		}
	}

	app := model.Application{
		SLA: model.SLA{
			Availability: af.IoTapplication.SLA.Availability,
			E2ELatency:   af.IoTapplication.SLA.E2E,
		},
	}

	for _, m := range af.IoTapplication.Microservices {
		if m.ID == "" {
			return model.Application{}, apperror.New(apperror.CodeMalformedDescriptor, "microservice missing id")
		}
		dest := make([]model.MicroserviceID, 0, len(m.Dest))
		for _, d := range m.Dest {
			dest = append(dest, model.MicroserviceID(d.ID))
		}
		app.Microservices = append(app.Microservices, model.Microservice{
			ID:            model.MicroserviceID(m.ID),
			RAMReqMB:      m.RAM,
			HDDReqMB:      m.HDD,
			ContainerPort: m.ContainerPort,
			ExternalPort:  m.ExternalPort,
			Dest:          dest,
		})
	}
	return app, nil
}
