// Package report assembles a point-in-time view of a deployment — its
// topology, placement, invocation path, and recent adaptation history —
// into a format-independent DeploymentReport for the generators in
// internal/report/generator to render.
package report

import (
	"time"

	"github.com/google/uuid"

	"edgeorch/internal/history"
	"edgeorch/internal/model"
)

// NodeSummary is one node's state at report time.
type NodeSummary struct {
	ID          int64
	URL         string
	Alive       bool
	FailureProb float64
	RAMBytes    int64
	HDDBytes    int64
}

// ReplicaSummary is one microservice's placement and SLA standing.
type ReplicaSummary struct {
	MicroserviceID string
	NodeIDs        []int64
	Availability   float64
	Degraded       bool
}

// PathHop is one microservice's resolved position in the invocation path.
type PathHop struct {
	MicroserviceID string
	NodeID         int64
}

// AdaptationSummary is one row of the adaptation history, trimmed to what
// a report needs.
type AdaptationSummary struct {
	Trigger      model.AdaptationTrigger
	Degraded     bool
	PathFeasible bool
	DurationMs   int64
	OccurredAt   time.Time
}

// DeploymentReport is the format-independent snapshot handed to a
// generator.Generator.
type DeploymentReport struct {
	ReportID    uuid.UUID
	Title       string
	Author      string
	Description string
	GeneratedAt time.Time

	RequiredAvailability float64
	E2ELatencyBudget     int64

	Nodes      []NodeSummary
	Replicas   []ReplicaSummary
	Path       []PathHop
	PathValid  bool
	Adaptation []AdaptationSummary
}

// Build assembles a DeploymentReport from the Controller's live state.
func Build(
	app model.Application,
	topo *model.Topology,
	placement model.Placement,
	path model.InvocationPath,
	probed map[model.NodeID]bool,
	events []history.Record,
) *DeploymentReport {
	r := &DeploymentReport{
		ReportID:             uuid.New(),
		Title:                "Deployment Report",
		Author:               "edgeorch",
		GeneratedAt:          time.Now(),
		RequiredAvailability: app.SLA.Availability,
		E2ELatencyBudget:     app.SLA.E2ELatency,
	}

	for _, n := range topo.Nodes() {
		r.Nodes = append(r.Nodes, NodeSummary{
			ID:          int64(n.ID),
			URL:         n.URL,
			Alive:       probed[n.ID],
			FailureProb: n.FailureProb,
			RAMBytes:    n.RAMBytes,
			HDDBytes:    n.HDDBytes,
		})
	}

	for _, m := range app.Microservices {
		nodes := placement[m.ID]
		ids := make([]int64, len(nodes))
		for i, n := range nodes {
			ids[i] = int64(n)
		}
		r.Replicas = append(r.Replicas, ReplicaSummary{
			MicroserviceID: string(m.ID),
			NodeIDs:        ids,
			Availability:   placement.Availability(m.ID, topo),
			Degraded:       len(nodes) == 0,
		})
	}

	r.PathValid = path.Valid(placement)
	for _, m := range app.Microservices {
		if n, ok := path[m.ID]; ok {
			r.Path = append(r.Path, PathHop{MicroserviceID: string(m.ID), NodeID: int64(n)})
		}
	}

	for _, rec := range events {
		r.Adaptation = append(r.Adaptation, AdaptationSummary{
			Trigger:      rec.Trigger,
			Degraded:     rec.Degraded,
			PathFeasible: rec.PathFeasible,
			DurationMs:   rec.DurationMs,
			OccurredAt:   rec.OccurredAt,
		})
	}

	return r
}
