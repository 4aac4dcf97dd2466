package model

import "time"

// AdaptationTrigger names what caused an adaptation round to run.
type AdaptationTrigger string

const (
	TriggerStartup      AdaptationTrigger = "startup"
	TriggerNodeFailure  AdaptationTrigger = "node_failure"
)

// AdaptationEvent records the outcome of one adaptation round: what
// triggered it, the placement digest and invocation-path outcome it
// produced, and how long it took. Persisted via internal/history and
// emitted as a pkg/audit entry.
type AdaptationEvent struct {
	Trigger       AdaptationTrigger
	FailedNodeIDs []NodeID
	Placement     Placement
	Degraded      bool
	Path          InvocationPath
	PathFeasible  bool
	Duration      time.Duration
	OccurredAt    time.Time
}

// PlacementDigest renders a stable, human-readable summary of the
// placement for logging/audit, without requiring a full hash.
func (e AdaptationEvent) PlacementDigest() map[string][]int64 {
	out := make(map[string][]int64, len(e.Placement))
	for m, nodes := range e.Placement {
		ids := make([]int64, len(nodes))
		for i, n := range nodes {
			ids[i] = int64(n)
		}
		out[string(m)] = ids
	}
	return out
}
