// Package history persists AdaptationEvents so past placement and
// invocation-path decisions can be audited and replayed after the fact.
package history

import (
	"context"
	"errors"
	"time"

	"edgeorch/internal/model"
)

// ErrEventNotFound is returned when a requested event id does not exist.
var ErrEventNotFound = errors.New("adaptation event not found")

// Record is the persisted form of a model.AdaptationEvent, with the
// fields the Postgres schema actually stores.
type Record struct {
	ID            int64
	Trigger       model.AdaptationTrigger
	FailedNodeIDs []int64
	Placement     map[string][]int64
	Degraded      bool
	Path          map[string]int64
	PathFeasible  bool
	DurationMs    int64
	OccurredAt    time.Time
}

// ListFilter narrows ListRecent to a trigger kind and/or time window.
type ListFilter struct {
	Trigger model.AdaptationTrigger
	Since   *time.Time
	Until   *time.Time
}

// Repository persists and queries AdaptationEvents.
type Repository interface {
	Record(ctx context.Context, event model.AdaptationEvent) (int64, error)
	GetByID(ctx context.Context, id int64) (*Record, error)
	ListRecent(ctx context.Context, limit int, filter *ListFilter) ([]*Record, error)
}

// toRecord converts the in-memory event into its persisted shape.
func toRecord(event model.AdaptationEvent) Record {
	failed := make([]int64, len(event.FailedNodeIDs))
	for i, n := range event.FailedNodeIDs {
		failed[i] = int64(n)
	}

	path := make(map[string]int64, len(event.Path))
	for m, n := range event.Path {
		path[string(m)] = int64(n)
	}

	return Record{
		Trigger:       event.Trigger,
		FailedNodeIDs: failed,
		Placement:     event.PlacementDigest(),
		Degraded:      event.Degraded,
		Path:          path,
		PathFeasible:  event.PathFeasible,
		DurationMs:    event.Duration.Milliseconds(),
		OccurredAt:    event.OccurredAt,
	}
}
