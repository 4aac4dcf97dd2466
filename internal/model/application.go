package model

import (
	"fmt"
	"strings"
)

// MicroserviceID is the declared "owner/name" identifier of a microservice.
type MicroserviceID string

// ShortID returns the "name" half of an "owner/name" identifier, the form
// node agents key their /microservices_dest table by. IDs without a "/"
// are returned unchanged.
func (id MicroserviceID) ShortID() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Microservice is a logical application component with resource
// requirements and outbound dependency edges.
type Microservice struct {
	ID            MicroserviceID
	RAMReqMB      int64
	HDDReqMB      int64
	ContainerPort string
	ExternalPort  string
	Dest          []MicroserviceID // outbound dependency edges
}

// RAMReqBytes converts the declared MB requirement to bytes.
func (m Microservice) RAMReqBytes() int64 { return mbToBytes(m.RAMReqMB) }

// HDDReqBytes converts the declared MB requirement to bytes.
func (m Microservice) HDDReqBytes() int64 { return mbToBytes(m.HDDReqMB) }

func mbToBytes(mb int64) int64 { return mb * 1024 * 1024 }

// SLA is the pair of requirements a deployment must satisfy.
type SLA struct {
	Availability float64 // (0,1)
	E2ELatency   int64   // integer latency budget
}

// Application is the immutable, declared dependency graph of
// microservices plus the SLA it must meet.
type Application struct {
	Microservices []Microservice
	SLA           SLA
}

// ByID returns a lookup map from microservice id to microservice.
func (a Application) ByID() map[MicroserviceID]Microservice {
	out := make(map[MicroserviceID]Microservice, len(a.Microservices))
	for _, m := range a.Microservices {
		out[m.ID] = m
	}
	return out
}

// Edges enumerates the dependency edges (u -> v) in declaration order.
func (a Application) Edges() []DependencyEdge {
	var edges []DependencyEdge
	for _, m := range a.Microservices {
		for _, d := range m.Dest {
			edges = append(edges, DependencyEdge{From: m.ID, To: d})
		}
	}
	return edges
}

// DependencyEdge is one outbound dependency edge between microservices.
type DependencyEdge struct {
	From MicroserviceID
	To   MicroserviceID
}

func (e DependencyEdge) String() string {
	return fmt.Sprintf("%s->%s", e.From, e.To)
}
