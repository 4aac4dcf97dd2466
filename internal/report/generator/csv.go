package generator

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"edgeorch/internal/report"
)

// CSVGenerator renders a DeploymentReport as a CSV table of replica
// placements, one row per microservice.
type CSVGenerator struct {
	BaseGenerator
}

// NewCSVGenerator creates a new CSV generator.
func NewCSVGenerator() *CSVGenerator {
	return &CSVGenerator{}
}

// Format returns the generator's output format.
func (g *CSVGenerator) Format() Format {
	return FormatCSV
}

// csvWriter wraps csv.Writer to defer error checking to the end.
type csvWriter struct {
	w   *csv.Writer
	err error
}

func (cw *csvWriter) Write(record []string) {
	if cw.err != nil {
		return
	}
	cw.err = cw.w.Write(record)
}

// Generate renders the report as CSV.
func (g *CSVGenerator) Generate(ctx context.Context, r *report.DeploymentReport) ([]byte, error) {
	var buf bytes.Buffer
	cw := &csvWriter{w: csv.NewWriter(&buf)}

	cw.Write([]string{"microservice", "node_ids", "availability", "degraded"})
	for _, rep := range r.Replicas {
		cw.Write([]string{
			rep.MicroserviceID,
			fmt.Sprint(rep.NodeIDs),
			g.FormatFloat(rep.Availability, 4),
			fmt.Sprint(rep.Degraded),
		})
	}

	cw.w.Flush()
	if cw.err != nil {
		return nil, cw.err
	}
	if err := cw.w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
