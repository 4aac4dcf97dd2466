package generator

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"edgeorch/internal/report"
)

var (
	headerBgColor = &props.Color{Red: 44, Green: 62, Blue: 80}
	primaryColor  = &props.Color{Red: 52, Green: 152, Blue: 219}
	darkGrayColor = &props.Color{Red: 127, Green: 140, Blue: 141}

	titleStyle  = props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Center, Color: headerBgColor}
	h2Style     = props.Text{Size: 14, Style: fontstyle.Bold, Color: headerBgColor, Top: 4}
	normalStyle = props.Text{Size: 9}
	boldStyle   = props.Text{Size: 9, Style: fontstyle.Bold}
	smallStyle  = props.Text{Size: 8, Color: darkGrayColor}
)

// PDFGenerator renders a DeploymentReport as a PDF document.
type PDFGenerator struct {
	BaseGenerator
}

// NewPDFGenerator creates a new PDF generator.
func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

// Format returns the generator's output format.
func (g *PDFGenerator) Format() Format {
	return FormatPDF
}

// Generate renders the report as a PDF document.
func (g *PDFGenerator) Generate(ctx context.Context, r *report.DeploymentReport) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	g.addHeader(m, r)
	g.addTopology(m, r)
	g.addPlacement(m, r)
	g.addPath(m, r)
	if len(r.Adaptation) > 0 {
		g.addAdaptation(m, r)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return doc.GetBytes(), nil
}

func (g *PDFGenerator) addHeader(m core.Maroto, r *report.DeploymentReport) {
	m.AddRow(12, text.NewCol(12, r.Title, titleStyle))
	m.AddRow(4, line.NewCol(12))
	m.AddRow(6,
		text.NewCol(6, fmt.Sprintf("Author: %s", r.Author), smallStyle),
		text.NewCol(6, fmt.Sprintf("Generated: %s", r.GeneratedAt.Format("2006-01-02 15:04:05")),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Right}),
	)
	m.AddRow(6,
		text.NewCol(6, fmt.Sprintf("Required availability: %s", g.FormatPercent(r.RequiredAvailability)), smallStyle),
		text.NewCol(6, fmt.Sprintf("E2E latency budget: %d", r.E2ELatencyBudget), smallStyle),
	)
	m.AddRow(8)
}

func (g *PDFGenerator) addSection(m core.Maroto, title string) {
	m.AddRow(8, text.NewCol(12, title, h2Style))
	m.AddRow(2, line.NewCol(12, props.Line{Color: primaryColor}))
}

func (g *PDFGenerator) addTopology(m core.Maroto, r *report.DeploymentReport) {
	g.addSection(m, "Topology")
	for _, n := range r.Nodes {
		m.AddRow(6,
			col.New(2).Add(text.New(fmt.Sprintf("%d", n.ID), boldStyle)),
			col.New(4).Add(text.New(n.URL, normalStyle)),
			col.New(2).Add(text.New(fmt.Sprintf("%v", n.Alive), normalStyle)),
			col.New(4).Add(text.New(fmt.Sprintf("fail=%s", g.FormatFloat(n.FailureProb, 3)), normalStyle)),
		)
	}
	m.AddRow(5)
}

func (g *PDFGenerator) addPlacement(m core.Maroto, r *report.DeploymentReport) {
	g.addSection(m, "Placement")
	for _, rep := range r.Replicas {
		m.AddRow(6,
			col.New(4).Add(text.New(rep.MicroserviceID, boldStyle)),
			col.New(4).Add(text.New(fmt.Sprintf("%v", rep.NodeIDs), normalStyle)),
			col.New(2).Add(text.New(g.FormatPercent(rep.Availability), normalStyle)),
			col.New(2).Add(text.New(fmt.Sprintf("degraded=%v", rep.Degraded), normalStyle)),
		)
	}
	m.AddRow(5)
}

func (g *PDFGenerator) addPath(m core.Maroto, r *report.DeploymentReport) {
	g.addSection(m, fmt.Sprintf("Invocation Path (%s)", validLabel(r.PathValid)))
	for _, hop := range r.Path {
		m.AddRow(6,
			col.New(6).Add(text.New(hop.MicroserviceID, boldStyle)),
			col.New(6).Add(text.New(fmt.Sprintf("%d", hop.NodeID), normalStyle)),
		)
	}
	m.AddRow(5)
}

func (g *PDFGenerator) addAdaptation(m core.Maroto, r *report.DeploymentReport) {
	g.addSection(m, "Adaptation History")
	for _, ev := range r.Adaptation {
		m.AddRow(6,
			col.New(3).Add(text.New(string(ev.Trigger), boldStyle)),
			col.New(3).Add(text.New(fmt.Sprintf("degraded=%v", ev.Degraded), normalStyle)),
			col.New(3).Add(text.New(g.FormatDuration(ev.DurationMs), normalStyle)),
			col.New(3).Add(text.New(ev.OccurredAt.Format("2006-01-02 15:04:05"), smallStyle)),
		)
	}
}
