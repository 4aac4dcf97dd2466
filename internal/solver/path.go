package solver

import (
	"edgeorch/internal/model"
)

// PathSolver picks one replica node per microservice — an invocation path —
// satisfying the application's end-to-end latency budget and availability
// requirement. The availability of a
// chosen node is always bound to that specific node, never to a
// free-standing microservice-name symbol — the bug present in the original
// pysmt encoding (availability_encoding appended availability(task), the
// bare function, instead of availability(t) for the node t was bound to).
type PathSolver struct{}

// NewPathSolver builds a PathSolver.
func NewPathSolver() *PathSolver {
	return &PathSolver{}
}

// Solve searches for an invocation path over placement's replica sets. It
// returns the path and a feasible flag; an empty/false result means no
// combination of replica nodes satisfies both the latency budget and the
// availability requirement. A
// microservice with zero replicas (an undegraded placement precondition)
// also yields false — callers should check placement.IsDegraded first.
func (s *PathSolver) Solve(app model.Application, placement model.Placement, lt *model.LatencyTable, topo *model.Topology) (model.InvocationPath, bool) {
	order := make([]model.Microservice, len(app.Microservices))
	copy(order, app.Microservices)

	candidates := make(map[model.MicroserviceID][]model.NodeID, len(order))
	for _, ms := range order {
		nodes := placement[ms.ID]
		if len(nodes) == 0 {
			return nil, false
		}
		sorted := make([]model.NodeID, len(nodes))
		copy(sorted, nodes)
		sortByAvailabilityDesc(sorted, topo)
		candidates[ms.ID] = sorted
	}

	edges := app.Edges()
	budget := app.SLA.E2ELatency
	path := make(model.InvocationPath, len(order))

	ps := pathSearch{order: order, candidates: candidates, edges: edges, lt: lt, budget: budget,
		topo: topo, requirement: app.SLA.Availability}
	if !ps.assign(0, 0, path) {
		return nil, false
	}
	return path, true
}

// pathSearch holds one Solve call's fixed inputs, so the recursive search
// carries no global state and is safe to run concurrently across distinct
// Solve calls.
type pathSearch struct {
	order       []model.Microservice
	candidates  map[model.MicroserviceID][]model.NodeID
	edges       []model.DependencyEdge
	lt          *model.LatencyTable
	budget      int64
	topo        *model.Topology
	requirement float64
}

// assign tries every candidate node for order[i], pruning any branch whose
// accumulated latency over already-resolved dependency edges would exceed
// the e2e budget. A complete assignment is accepted only if its combined
// availability also meets the requirement; otherwise the search goes on.
func (ps *pathSearch) assign(i int, acc int64, path model.InvocationPath) bool {
	if i == len(ps.order) {
		return combinedPathAvailability(path, ps.topo) >= ps.requirement
	}
	ms := ps.order[i]
	for _, n := range ps.candidates[ms.ID] {
		path[ms.ID] = n
		delta := ps.latencyDelta(ms.ID, path)
		if acc+delta > ps.budget {
			delete(path, ms.ID)
			continue
		}
		if ps.assign(i+1, acc+delta, path) {
			return true
		}
	}
	delete(path, ms.ID)
	return false
}

// latencyDelta sums the latency of every dependency edge that becomes
// fully resolved by assigning ms's node in path (i.e. both endpoints of
// the edge are now present in path).
func (ps *pathSearch) latencyDelta(ms model.MicroserviceID, path model.InvocationPath) int64 {
	var total int64
	for _, e := range ps.edges {
		if e.From != ms && e.To != ms {
			continue
		}
		other := e.To
		if e.To == ms {
			other = e.From
		}
		otherNode, ok := path[other]
		if !ok {
			continue
		}
		thisNode := path[ms]
		if lat, ok := ps.lt.Get(thisNode, otherNode); ok {
			total += lat
		}
	}
	return total
}

// combinedPathAvailability is 1 - Π(1 - avail(node)) over the path's chosen
// nodes, each bound to the specific node it resolved to.
func combinedPathAvailability(path model.InvocationPath, topo *model.Topology) float64 {
	unavail := 1.0
	for _, id := range path {
		n, ok := topo.Get(id)
		if !ok {
			continue
		}
		unavail *= 1 - n.Availability()
	}
	return 1 - unavail
}

// PathAvailability exposes combinedPathAvailability to callers outside
// this package, e.g. for reporting the SLA margin of a solved path.
func PathAvailability(path model.InvocationPath, topo *model.Topology) float64 {
	return combinedPathAvailability(path, topo)
}

// PathLatency sums the latency of every dependency edge fully resolved by
// path, the same accumulation Solve's search performs, computed after the
// fact for reporting.
func PathLatency(app model.Application, path model.InvocationPath, lt *model.LatencyTable) int64 {
	var total int64
	for _, e := range app.Edges() {
		fromNode, ok := path[e.From]
		if !ok {
			continue
		}
		toNode, ok := path[e.To]
		if !ok {
			continue
		}
		if lat, ok := lt.Get(fromNode, toNode); ok {
			total += lat
		}
	}
	return total
}
