package generator

import (
	"bytes"
	"context"
	"fmt"

	"edgeorch/internal/report"
)

// MarkdownGenerator renders a DeploymentReport as a Markdown document.
type MarkdownGenerator struct {
	BaseGenerator
}

// NewMarkdownGenerator creates a new Markdown generator.
func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

// Format returns the generator's output format.
func (g *MarkdownGenerator) Format() Format {
	return FormatMarkdown
}

// Generate renders the report as Markdown.
func (g *MarkdownGenerator) Generate(ctx context.Context, r *report.DeploymentReport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", r.Title))
	buf.WriteString(fmt.Sprintf("- **Generated:** %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("- **Author:** %s\n", r.Author))
	buf.WriteString(fmt.Sprintf("- **Required availability:** %s\n", g.FormatPercent(r.RequiredAvailability)))
	buf.WriteString(fmt.Sprintf("- **E2E latency budget:** %d\n", r.E2ELatencyBudget))
	buf.WriteString("\n---\n\n")

	buf.WriteString("## Topology\n\n")
	buf.WriteString("| Node | URL | Alive | Failure Prob | RAM | HDD |\n")
	buf.WriteString("|---|---|---|---|---|---|\n")
	for _, n := range r.Nodes {
		buf.WriteString(fmt.Sprintf("| %d | %s | %v | %s | %d | %d |\n",
			n.ID, n.URL, n.Alive, g.FormatFloat(n.FailureProb, 3), n.RAMBytes, n.HDDBytes))
	}
	buf.WriteString("\n")

	buf.WriteString("## Placement\n\n")
	buf.WriteString("| Microservice | Nodes | Availability | Degraded |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, rep := range r.Replicas {
		buf.WriteString(fmt.Sprintf("| %s | %v | %s | %v |\n",
			rep.MicroserviceID, rep.NodeIDs, g.FormatPercent(rep.Availability), rep.Degraded))
	}
	buf.WriteString("\n")

	buf.WriteString(fmt.Sprintf("## Invocation Path (%s)\n\n", validLabel(r.PathValid)))
	buf.WriteString("| Microservice | Node |\n")
	buf.WriteString("|---|---|\n")
	for _, hop := range r.Path {
		buf.WriteString(fmt.Sprintf("| %s | %d |\n", hop.MicroserviceID, hop.NodeID))
	}
	buf.WriteString("\n")

	if len(r.Adaptation) > 0 {
		buf.WriteString("## Adaptation History\n\n")
		buf.WriteString("| Trigger | Degraded | Path Feasible | Duration | Occurred |\n")
		buf.WriteString("|---|---|---|---|---|\n")
		for _, ev := range r.Adaptation {
			buf.WriteString(fmt.Sprintf("| %s | %v | %v | %s | %s |\n",
				ev.Trigger, ev.Degraded, ev.PathFeasible, g.FormatDuration(ev.DurationMs),
				ev.OccurredAt.Format("2006-01-02 15:04:05")))
		}
	}

	return buf.Bytes(), nil
}

func validLabel(valid bool) string {
	if valid {
		return "feasible"
	}
	return "infeasible"
}
