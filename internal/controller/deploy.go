package controller

import (
	"context"
	"fmt"

	"edgeorch/internal/agent"
	"edgeorch/internal/model"
)

// AgentDeployer is the production ContainerDeployer: it starts one
// container per placement replica and pushes the application's routing
// knowledge (destinations, ports, node URLs) to every node, mirroring the
// original's start_all_containers and the "Send the required knowledge to
// nodes" half of start_application. The invocation path itself is pushed
// separately by Controller.pushInvocationPath once the Path Solver has
// run, since it is not known at Deploy time.
type AgentDeployer struct {
	Client *agent.Client
}

// NewAgentDeployer builds an AgentDeployer.
func NewAgentDeployer(client *agent.Client) *AgentDeployer {
	return &AgentDeployer{Client: client}
}

// Deploy implements ContainerDeployer.
func (d *AgentDeployer) Deploy(ctx context.Context, app model.Application, placement model.Placement, topo *model.Topology) error {
	dest := destinationsOf(app)
	ports := portsOf(app)
	ips := ipsOf(topo)

	for _, ms := range app.Microservices {
		nodes := placement[ms.ID]
		for _, nodeID := range nodes {
			node, ok := topo.Get(nodeID)
			if !ok {
				continue
			}
			if err := d.Client.StartDockerContainer(ctx, *node, string(ms.ID), ms.ContainerPort, ms.ExternalPort); err != nil {
				return fmt.Errorf("start container for %s on node %d: %w", ms.ID, nodeID, err)
			}
		}
	}

	for _, node := range topo.Nodes() {
		if err := d.Client.PushMicroserviceDestinations(ctx, *node, dest); err != nil {
			return fmt.Errorf("push destinations to node %d: %w", node.ID, err)
		}
		if err := d.Client.PushMicroservicePorts(ctx, *node, ports); err != nil {
			return fmt.Errorf("push ports to node %d: %w", node.ID, err)
		}
		if err := d.Client.PushNodesIPs(ctx, *node, ips); err != nil {
			return fmt.Errorf("push node ips to node %d: %w", node.ID, err)
		}
	}

	return nil
}

// destinationsOf builds the /microservices_dest payload, keyed and
// valued by short id (the "name" half of "owner/name"), matching the
// node agent's container_id-keyed lookup table.
func destinationsOf(app model.Application) map[string][]string {
	out := make(map[string][]string, len(app.Microservices))
	for _, ms := range app.Microservices {
		dest := make([]string, len(ms.Dest))
		for i, d := range ms.Dest {
			dest[i] = d.ShortID()
		}
		out[ms.ID.ShortID()] = dest
	}
	return out
}

func portsOf(app model.Application) map[string][2]string {
	out := make(map[string][2]string, len(app.Microservices))
	for _, ms := range app.Microservices {
		out[string(ms.ID)] = [2]string{ms.ContainerPort, ms.ExternalPort}
	}
	return out
}

func ipsOf(topo *model.Topology) map[string]string {
	out := make(map[string]string)
	for _, n := range topo.Nodes() {
		out[fmt.Sprintf("%d", n.ID)] = n.URL
	}
	return out
}
