package model

import "sort"

// Placement maps a microservice to the set of nodes hosting its replicas.
// An empty (or absent) set for a microservice is a first-class state: it
// means placement failed for that microservice this cycle, not an error.
type Placement map[MicroserviceID][]NodeID

// Clone returns a deep copy so callers can mutate without aliasing the
// Controller's owned copy.
func (p Placement) Clone() Placement {
	out := make(Placement, len(p))
	for m, nodes := range p {
		cp := make([]NodeID, len(nodes))
		copy(cp, nodes)
		out[m] = cp
	}
	return out
}

// IsDegraded reports whether any microservice has zero replicas.
func (p Placement) IsDegraded(app Application) bool {
	for _, m := range app.Microservices {
		if len(p[m.ID]) == 0 {
			return true
		}
	}
	return false
}

// RemoveNode strips a failed node from every microservice's replica set,
// preserving relative order of the remaining replicas.
func (p Placement) RemoveNode(id NodeID) {
	for m, nodes := range p {
		if !containsNode(nodes, id) {
			continue
		}
		filtered := make([]NodeID, 0, len(nodes))
		for _, n := range nodes {
			if n != id {
				filtered = append(filtered, n)
			}
		}
		p[m] = filtered
	}
}

func containsNode(nodes []NodeID, id NodeID) bool {
	for _, n := range nodes {
		if n == id {
			return true
		}
	}
	return false
}

// Availability returns the per-microservice combined availability,
// 1 - Π(1 - avail(n)) over the microservice's replicas.
func (p Placement) Availability(m MicroserviceID, topo *Topology) float64 {
	nodes := p[m]
	if len(nodes) == 0 {
		return 0
	}
	unavailability := 1.0
	for _, id := range nodes {
		n, ok := topo.Get(id)
		if !ok {
			continue
		}
		unavailability *= 1 - n.Availability()
	}
	return 1 - unavailability
}

// SortedMicroserviceIDs returns the placement's microservice keys in a
// deterministic order, used for stable canonicalisation (hashing, logging).
func (p Placement) SortedMicroserviceIDs() []MicroserviceID {
	ids := make([]MicroserviceID, 0, len(p))
	for m := range p {
		ids = append(ids, m)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// InvocationPath maps each microservice to exactly one replica node, drawn
// from that microservice's Placement set.
type InvocationPath map[MicroserviceID]NodeID

// Clone returns a shallow copy (values are plain NodeIDs).
func (ip InvocationPath) Clone() InvocationPath {
	out := make(InvocationPath, len(ip))
	for m, n := range ip {
		out[m] = n
	}
	return out
}

// Valid checks that every chosen node is a member of
// the corresponding Placement set.
func (ip InvocationPath) Valid(p Placement) bool {
	for m, n := range ip {
		if !containsNode(p[m], n) {
			return false
		}
	}
	return true
}

// SortedMicroserviceIDs returns the path's microservice keys in a
// deterministic order.
func (ip InvocationPath) SortedMicroserviceIDs() []MicroserviceID {
	ids := make([]MicroserviceID, 0, len(ip))
	for m := range ip {
		ids = append(ids, m)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
