package generator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"edgeorch/internal/report"
)

func sampleReport() *report.DeploymentReport {
	return &report.DeploymentReport{
		Title:                "Deployment Report",
		Author:               "edgeorch",
		GeneratedAt:          time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		RequiredAvailability: 0.99,
		E2ELatencyBudget:     100,
		Nodes: []report.NodeSummary{
			{ID: 1, URL: "http://node1:8000", Alive: true, FailureProb: 0.1, RAMBytes: 1024, HDDBytes: 2048},
		},
		Replicas: []report.ReplicaSummary{
			{MicroserviceID: "owner/svc-a", NodeIDs: []int64{1}, Availability: 0.9, Degraded: false},
		},
		Path:      []report.PathHop{{MicroserviceID: "owner/svc-a", NodeID: 1}},
		PathValid: true,
	}
}

func TestJSONGenerator(t *testing.T) {
	g := NewJSONGenerator()
	out, err := g.Generate(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var decoded report.DeploymentReport
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Title != "Deployment Report" {
		t.Errorf("title = %q", decoded.Title)
	}
	if g.Format() != FormatJSON {
		t.Errorf("format = %v", g.Format())
	}
}

func TestMarkdownGenerator(t *testing.T) {
	g := NewMarkdownGenerator()
	out, err := g.Generate(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	s := string(out)
	if !strings.Contains(s, "# Deployment Report") {
		t.Error("expected title heading")
	}
	if !strings.Contains(s, "owner/svc-a") {
		t.Error("expected microservice id in output")
	}
}

func TestCSVGenerator(t *testing.T) {
	g := NewCSVGenerator()
	out, err := g.Generate(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	s := string(out)
	if !strings.Contains(s, "microservice,node_ids,availability,degraded") {
		t.Errorf("unexpected header: %s", s)
	}
	if !strings.Contains(s, "owner/svc-a") {
		t.Error("expected microservice row")
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New(Format("bogus")); err == nil {
		t.Error("expected error for unknown format")
	}
}
