package solver

import (
	"context"
	"math/rand"
	"net"
	"time"

	"edgeorch/internal/model"
)

// LatencyOracle builds the pairwise LatencyTable for a topology. Per
// design, the table is computed once per
// adaptation cycle and handed to the Path Solver as pure data — the oracle
// never runs inside the search itself.
type LatencyOracle interface {
	Build(ctx context.Context, topo *model.Topology) (*model.LatencyTable, error)
}

// RandomOracle reproduces the original's build_latency_dict: a uniform
// random latency in [1,10] (ms) per unordered node pair, symmetric, with a
// zero diagonal. It needs no network access and is the default for
// descriptor-driven test topologies and simulation.
type RandomOracle struct {
	Rand *rand.Rand
}

// NewRandomOracle builds a RandomOracle seeded from seed.
func NewRandomOracle(seed int64) *RandomOracle {
	return &RandomOracle{Rand: rand.New(rand.NewSource(seed))}
}

// Build implements LatencyOracle.
func (o *RandomOracle) Build(_ context.Context, topo *model.Topology) (*model.LatencyTable, error) {
	lt := model.NewLatencyTable()
	ids := topo.IDs()
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			ms := int64(1 + o.Rand.Intn(10)) // [1,10]
			lt.Set(ids[i], ids[j], ms)
		}
	}
	return lt, nil
}

// TCPOracle measures real latency as TCP connect round-trip time between
// every pair of nodes, replacing the original's `ping` subprocess
// shell-out with a measurement the orchestrator can perform
// itself against the node agents' listening ports.
type TCPOracle struct {
	Timeout time.Duration
}

// NewTCPOracle builds a TCPOracle with the given per-probe timeout.
func NewTCPOracle(timeout time.Duration) *TCPOracle {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &TCPOracle{Timeout: timeout}
}

// Build implements LatencyOracle. Probing is done from the orchestrator's
// vantage point, so it measures orchestrator-to-node latency rather than
// true node-to-node latency; this is noted as an approximation, matching
// the original's own single-vantage-point ping approach.
func (o *TCPOracle) Build(ctx context.Context, topo *model.Topology) (*model.LatencyTable, error) {
	lt := model.NewLatencyTable()
	nodes := topo.Nodes()

	rtt := make(map[model.NodeID]int64, len(nodes))
	for _, n := range nodes {
		rtt[n.ID] = o.measure(ctx, *n)
	}

	ids := topo.IDs()
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			lt.Set(ids[i], ids[j], rtt[ids[i]]+rtt[ids[j]])
		}
	}
	return lt, nil
}

func (o *TCPOracle) measure(ctx context.Context, node model.Node) int64 {
	hostPort, err := node.HostPort()
	if err != nil {
		return 0
	}
	d := net.Dialer{Timeout: o.Timeout}
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return 0
	}
	elapsed := time.Since(start)
	_ = conn.Close()
	return elapsed.Milliseconds()
}
