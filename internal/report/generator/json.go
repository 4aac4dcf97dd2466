package generator

import (
	"context"
	"encoding/json"

	"edgeorch/internal/report"
)

// JSONGenerator renders a DeploymentReport as indented JSON.
type JSONGenerator struct {
	BaseGenerator
}

// NewJSONGenerator creates a new JSON generator.
func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{}
}

// Format returns the generator's output format.
func (g *JSONGenerator) Format() Format {
	return FormatJSON
}

// Generate renders the report as indented JSON.
func (g *JSONGenerator) Generate(ctx context.Context, r *report.DeploymentReport) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
