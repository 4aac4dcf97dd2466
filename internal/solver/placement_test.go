package solver

import (
	"testing"

	"edgeorch/internal/model"
)

func testTopology() *model.Topology {
	return model.NewTopology([]model.Node{
		{ID: 1, FailureProb: 0.1, RAMBytes: 1 << 30, HDDBytes: 1 << 30},
		{ID: 2, FailureProb: 0.1, RAMBytes: 1 << 30, HDDBytes: 1 << 30},
		{ID: 3, FailureProb: 0.5, RAMBytes: 1 << 30, HDDBytes: 1 << 30},
	})
}

func TestPlacementSolverMeetsAvailability(t *testing.T) {
	topo := testTopology()
	app := model.Application{
		SLA: model.SLA{Availability: 0.95, E2ELatency: 1000},
		Microservices: []model.Microservice{
			{ID: "m1", RAMReqMB: 1, HDDReqMB: 1},
		},
	}

	s := NewPlacementSolver()
	p, err := s.Solve(app, topo)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if p.IsDegraded(app) {
		t.Fatalf("expected non-degraded placement, got %v", p)
	}
	if got := p.Availability("m1", topo); got < 0.95 {
		t.Fatalf("availability %v below requirement", got)
	}
}

func TestPlacementSolverDegradesWhenResourcesExhausted(t *testing.T) {
	topo := model.NewTopology([]model.Node{
		{ID: 1, FailureProb: 0, RAMBytes: 10, HDDBytes: 10},
	})
	app := model.Application{
		SLA: model.SLA{Availability: 0.5},
		Microservices: []model.Microservice{
			{ID: "m1", RAMReqMB: 1, HDDReqMB: 1},
			{ID: "m2", RAMReqMB: 999999, HDDReqMB: 999999},
		},
	}

	s := NewPlacementSolver()
	p, err := s.Solve(app, topo)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !p.IsDegraded(app) {
		t.Fatal("expected degraded placement")
	}
	if len(p["m2"]) != 0 {
		t.Fatalf("expected m2 unplaced, got %v", p["m2"])
	}
}

func TestPlacementSolverEmptyTopology(t *testing.T) {
	topo := model.NewTopology(nil)
	app := model.Application{Microservices: []model.Microservice{{ID: "m1"}}}

	s := NewPlacementSolver()
	_, err := s.Solve(app, topo)
	if err == nil {
		t.Fatal("expected error for empty topology")
	}
}

func TestCombinedAvailabilityIncreasesWithReplicas(t *testing.T) {
	topo := testTopology()
	one := combinedAvailability([]model.NodeID{1}, topo)
	two := combinedAvailability([]model.NodeID{1, 2}, topo)
	if two <= one {
		t.Fatalf("expected adding a replica to increase availability: one=%v two=%v", one, two)
	}
}
