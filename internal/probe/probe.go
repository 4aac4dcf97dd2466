// Package probe implements the Resource Probe component:
// it asks every node in a Topology whether it's alive and, for live
// nodes, what resources it currently reports, without letting a single
// slow or dead node stall the others.
package probe

import (
	"context"
	"log/slog"
	"sync"

	"edgeorch/internal/agent"
	"edgeorch/internal/model"
)

// Result is one node's probe outcome.
type Result struct {
	NodeID model.NodeID
	Alive  bool
	RAM    int64
	HDD    int64
	Err    error
}

// Prober fans a liveness+resource check out across a topology.
type Prober struct {
	client *agent.Client
	log    *slog.Logger
}

// New builds a Prober around an agent client. log may be nil.
func New(client *agent.Client, log *slog.Logger) *Prober {
	return &Prober{client: client, log: log}
}

// Probe queries every node concurrently and returns one Result per node,
// in the topology's declaration order. A node that fails to answer is
// reported with Alive=false; Err is set only when the node passed the
// liveness check but its resource fetch failed. A failing node never
// aborts the probe of its siblings.
func (p *Prober) Probe(ctx context.Context, topo *model.Topology) []Result {
	ids := topo.IDs()
	results := make([]Result, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id model.NodeID) {
			defer wg.Done()
			node, ok := topo.Get(id)
			if !ok {
				results[i] = Result{NodeID: id, Alive: false}
				return
			}
			results[i] = p.probeOne(ctx, *node)
		}(i, id)
	}
	wg.Wait()

	return results
}

func (p *Prober) probeOne(ctx context.Context, node model.Node) Result {
	if !p.client.CheckAlive(ctx, node) {
		if p.log != nil {
			p.log.Warn("node unreachable", "node_id", node.ID, "url", node.URL)
		}
		return Result{NodeID: node.ID, Alive: false}
	}

	res, err := p.client.GetResources(ctx, node)
	if err != nil {
		if p.log != nil {
			p.log.Warn("node resource fetch failed", "node_id", node.ID, "url", node.URL, "error", err)
		}
		return Result{NodeID: node.ID, Alive: false, Err: err}
	}

	return Result{NodeID: node.ID, Alive: true, RAM: res.RAM, HDD: res.HDD}
}

// ApplyTo writes each live result's reported resources back onto the
// topology, so downstream solving sees current capacity rather than the
// static descriptor values.
func ApplyTo(topo *model.Topology, results []Result) {
	for _, r := range results {
		if r.Alive {
			topo.SetResources(r.NodeID, r.RAM, r.HDD)
		}
	}
}

// DownNodes returns the ids of nodes that failed to answer.
func DownNodes(results []Result) []model.NodeID {
	var down []model.NodeID
	for _, r := range results {
		if !r.Alive {
			down = append(down, r.NodeID)
		}
	}
	return down
}
