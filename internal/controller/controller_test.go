package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edgeorch/internal/agent"
	"edgeorch/internal/history"
	"edgeorch/internal/model"
	"edgeorch/internal/monitor"
	"edgeorch/internal/probe"
	"edgeorch/internal/solver"
)

func fastClient() *agent.Client {
	return agent.NewClient(agent.Config{
		ControlTimeout:      200 * time.Millisecond,
		ContainerTimeout:    200 * time.Millisecond,
		LivenessDialTimeout: 50 * time.Millisecond,
	}, nil)
}

func nodeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_resources":
			_ = json.NewEncoder(w).Encode(agent.Resources{RAM: 4096, HDD: 8192})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
}

func testApp() model.Application {
	return model.Application{
		SLA: model.SLA{Availability: 0.5, E2ELatency: 1000},
		Microservices: []model.Microservice{
			{ID: "owner/m1", RAMReqMB: 1, HDDReqMB: 1, Dest: []model.MicroserviceID{"owner/m2"}},
			{ID: "owner/m2", RAMReqMB: 1, HDDReqMB: 1},
		},
	}
}

type noopDeployer struct{}

func (noopDeployer) Deploy(ctx context.Context, app model.Application, placement model.Placement, topo *model.Topology) error {
	return nil
}

type memHistory struct {
	events []model.AdaptationEvent
}

func (m *memHistory) Record(ctx context.Context, event model.AdaptationEvent) (int64, error) {
	m.events = append(m.events, event)
	return int64(len(m.events)), nil
}

func (m *memHistory) GetByID(ctx context.Context, id int64) (*history.Record, error) {
	return nil, history.ErrEventNotFound
}

func (m *memHistory) ListRecent(ctx context.Context, limit int, filter *history.ListFilter) ([]*history.Record, error) {
	return nil, nil
}

func newTestController(t *testing.T, nodes []model.Node, hist *memHistory) *Controller {
	t.Helper()
	client := fastClient()
	deps := Dependencies{
		AgentClient: client,
		Prober:      probe.New(client, nil),
		Monitor:     monitor.New(client, 10*time.Millisecond, nil),
		Placer:      solver.NewPlacementSolver(),
		Pather:      solver.NewPathSolver(),
		Oracle:      solver.NewRandomOracle(1),
		History:     hist,
	}
	return New(deps, testApp())
}

func TestControllerStartFindsFeasiblePath(t *testing.T) {
	srv1, srv2 := nodeServer(t), nodeServer(t)
	defer srv1.Close()
	defer srv2.Close()

	nodes := []model.Node{
		{ID: 1, URL: srv1.URL, FailureProb: 0.01},
		{ID: 2, URL: srv2.URL, FailureProb: 0.01},
	}
	hist := &memHistory{}
	c := newTestController(t, nodes, hist)

	if err := c.Start(context.Background(), nodes, noopDeployer{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.Path().Valid(c.Placement()) {
		t.Fatal("expected path to be valid against placement")
	}
	if len(hist.events) != 1 || hist.events[0].Trigger != model.TriggerStartup {
		t.Fatalf("expected one startup event recorded, got %+v", hist.events)
	}
}

func TestControllerReactsToFailureWithoutReplacing(t *testing.T) {
	srv1, srv2 := nodeServer(t), nodeServer(t)
	defer srv2.Close()

	nodes := []model.Node{
		{ID: 1, URL: srv1.URL, FailureProb: 0.01},
		{ID: 2, URL: srv2.URL, FailureProb: 0.01},
	}
	hist := &memHistory{}
	c := newTestController(t, nodes, hist)

	if err := c.Start(context.Background(), nodes, noopDeployer{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	srv1.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	select {
	case err := <-errCh:
		if err != nil && err != ErrNoFeasiblePath {
			t.Fatalf("Run returned unexpected error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for Run to react to failure")
	}

	if _, ok := c.Topology().Get(1); ok {
		t.Fatal("expected failed node to be removed from topology")
	}
	if len(hist.events) < 2 {
		t.Fatalf("expected a node-failure event recorded, got %+v", hist.events)
	}
	last := hist.events[len(hist.events)-1]
	if last.Trigger != model.TriggerNodeFailure {
		t.Fatalf("expected node-failure trigger, got %v", last.Trigger)
	}
}
