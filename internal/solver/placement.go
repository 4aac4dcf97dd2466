// Package solver implements the Placement Solver and the
// Invocation-Path Solver. The
// reference implementation's SMT encoding (pysmt) is substituted with a
// combinatorial search over candidate node sets, pruned the same way the
// SMT solver prunes its search: infeasible branches are abandoned as soon
// as a partial assignment cannot possibly satisfy a constraint.
package solver

import (
	"sort"

	"edgeorch/internal/model"
	"edgeorch/pkg/apperror"
)

// nodeCapacity tracks remaining resource budget while placing, so replicas
// already assigned to a node reduce what later microservices can claim.
type nodeCapacity struct {
	ramBytes int64
	hddBytes int64
}

// PlacementSolver finds, for each microservice of an application, the
// smallest set of distinct replica nodes whose combined availability meets
// the application's SLA, honoring per-node RAM/HDD budgets shared across
// all microservices.
type PlacementSolver struct{}

// NewPlacementSolver builds a PlacementSolver.
func NewPlacementSolver() *PlacementSolver {
	return &PlacementSolver{}
}

// Solve computes a Placement for app over topo. A microservice that has no
// feasible replica set (insufficient resources on every candidate node, or
// no subset reaching the availability requirement) is left with an empty
// replica list — the placement is then degraded (model.Placement.IsDegraded)
// rather than the whole solve failing. Solve only returns an error (CodePlacementInfeasible) when the
// topology itself is empty, since no placement whatsoever is possible.
func (s *PlacementSolver) Solve(app model.Application, topo *model.Topology) (model.Placement, error) {
	allNodes := topo.IDs()
	if len(allNodes) == 0 {
		return nil, apperror.New(apperror.CodePlacementInfeasible, "topology has no nodes")
	}

	remaining := make(map[model.NodeID]nodeCapacity, len(allNodes))
	for _, id := range allNodes {
		n, _ := topo.Get(id)
		remaining[id] = nodeCapacity{ramBytes: n.RAMBytes, hddBytes: n.HDDBytes}
	}

	placement := make(model.Placement, len(app.Microservices))
	for _, ms := range app.Microservices {
		candidates := fittingNodes(allNodes, remaining, ms)
		sortByAvailabilityDesc(candidates, topo)

		replicas := findReplication(candidates, topo, app.SLA.Availability)
		placement[ms.ID] = replicas

		for _, id := range replicas {
			c := remaining[id]
			c.ramBytes -= ms.RAMReqBytes()
			c.hddBytes -= ms.HDDReqBytes()
			remaining[id] = c
		}
	}

	return placement, nil
}

// fittingNodes returns the nodes (in declaration order) whose remaining
// capacity can still host ms.
func fittingNodes(allNodes []model.NodeID, remaining map[model.NodeID]nodeCapacity, ms model.Microservice) []model.NodeID {
	out := make([]model.NodeID, 0, len(allNodes))
	ramReq, hddReq := ms.RAMReqBytes(), ms.HDDReqBytes()
	for _, id := range allNodes {
		c := remaining[id]
		if c.ramBytes >= ramReq && c.hddBytes >= hddReq {
			out = append(out, id)
		}
	}
	return out
}

// sortByAvailabilityDesc orders candidates by descending per-node
// availability so the search for the smallest satisfying replica set tries
// the most reliable nodes first, matching the original's preference for
// fewer, better replicas. Ties broken by node id for determinism.
func sortByAvailabilityDesc(candidates []model.NodeID, topo *model.Topology) {
	sort.Slice(candidates, func(i, j int) bool {
		ni, _ := topo.Get(candidates[i])
		nj, _ := topo.Get(candidates[j])
		if ni.Availability() != nj.Availability() {
			return ni.Availability() > nj.Availability()
		}
		return candidates[i] < candidates[j]
	})
}

// findReplication searches replica counts 1..len(candidates) in order,
// returning the first (smallest) prefix of candidates whose combined
// availability meets requirement. Returns nil if no count works.
func findReplication(candidates []model.NodeID, topo *model.Topology, requirement float64) []model.NodeID {
	for r := 1; r <= len(candidates); r++ {
		subset := candidates[:r]
		if combinedAvailability(subset, topo) >= requirement {
			out := make([]model.NodeID, r)
			copy(out, subset)
			return out
		}
	}
	return nil
}

// combinedAvailability is 1 - Π(1 - avail(n)), the probability at least
// one replica is reachable.
func combinedAvailability(nodes []model.NodeID, topo *model.Topology) float64 {
	unavail := 1.0
	for _, id := range nodes {
		n, ok := topo.Get(id)
		if !ok {
			continue
		}
		unavail *= 1 - n.Availability()
	}
	return 1 - unavail
}
