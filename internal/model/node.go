// Package model holds the data types shared by every component of the
// adaptation core: nodes, microservices, applications, placements,
// invocation paths, latency tables, and monitor state.
package model

import (
	"fmt"
	"net/url"
	"strings"
)

// NodeID identifies an edge node in the declared topology.
type NodeID int64

// Node is one edge node in the declared topology.
type Node struct {
	ID          NodeID
	URL         string // proto://host:port, as declared
	FailureProb float64

	// Probed resources, filled in by the Resource Probe. Zero until probed.
	RAMBytes int64
	HDDBytes int64
}

// HostPort splits the node URL into the host:port pair used for TCP-connect
// liveness checks, parsing proto://host:port exactly once.
func (n Node) HostPort() (string, error) {
	u, err := url.Parse(n.URL)
	if err != nil {
		return "", fmt.Errorf("node %d: invalid url %q: %w", n.ID, n.URL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("node %d: url %q has no host:port", n.ID, n.URL)
	}
	return u.Host, nil
}

// Availability is 1 - FailureProb, the probability a replica on this node
// is reachable.
func (n Node) Availability() float64 {
	return 1 - n.FailureProb
}

// Topology is the live, mutable set of nodes known to the Controller. It
// keeps both an id-indexed map (for solver hot paths) and hands back URLs
// only at the edges (descriptor loading, agent dialing) per the node-id/URL
// bimap design note.
type Topology struct {
	nodes map[NodeID]*Node
	order []NodeID // declaration order, preserved for deterministic iteration
}

// NewTopology builds a Topology from a slice of nodes in declared order.
func NewTopology(nodes []Node) *Topology {
	t := &Topology{
		nodes: make(map[NodeID]*Node, len(nodes)),
		order: make([]NodeID, 0, len(nodes)),
	}
	for i := range nodes {
		n := nodes[i]
		t.nodes[n.ID] = &n
		t.order = append(t.order, n.ID)
	}
	return t
}

// Get returns the node for an id, or false if it is not (or no longer) in
// the topology.
func (t *Topology) Get(id NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Nodes returns the live nodes in declaration order.
func (t *Topology) Nodes() []*Node {
	out := make([]*Node, 0, len(t.order))
	for _, id := range t.order {
		if n, ok := t.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// IDs returns the live node ids in declaration order.
func (t *Topology) IDs() []NodeID {
	out := make([]NodeID, 0, len(t.order))
	for _, id := range t.order {
		if _, ok := t.nodes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Remove retires a node from the topology. It is idempotent.
func (t *Topology) Remove(id NodeID) {
	delete(t.nodes, id)
}

// DownCount returns how many of the originally declared nodes are no
// longer live (probed down at startup or failed at runtime).
func (t *Topology) DownCount() int {
	return len(t.order) - len(t.nodes)
}

// SetResources records the probed RAM/HDD for a node. No-op if the node is
// no longer present.
func (t *Topology) SetResources(id NodeID, ramBytes, hddBytes int64) {
	if n, ok := t.nodes[id]; ok {
		n.RAMBytes = ramBytes
		n.HDDBytes = hddBytes
	}
}

// String renders a compact debug representation.
func (n Node) String() string {
	return fmt.Sprintf("Node{id=%d, url=%s, failure=%.3f}", n.ID, n.URL, n.FailureProb)
}

// ParseHostPort strips the scheme from a node URL and returns host:port,
// used by callers that already have a bare URL string rather than a Node.
func ParseHostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid node url %q: %w", rawURL, err)
	}
	if u.Host != "" {
		return u.Host, nil
	}
	// tolerate bare host:port with no scheme
	if strings.Contains(rawURL, ":") {
		return rawURL, nil
	}
	return "", fmt.Errorf("node url %q has no host:port", rawURL)
}
