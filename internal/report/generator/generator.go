// Package generator renders a report.DeploymentReport into one of
// several output formats: JSON, Markdown, CSV, Excel, and PDF.
package generator

import (
	"context"
	"fmt"

	"edgeorch/internal/report"
)

// Format identifies an output format a Generator produces.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatExcel    Format = "excel"
	FormatPDF      Format = "pdf"
)

// Generator renders a DeploymentReport to bytes in one format.
type Generator interface {
	Generate(ctx context.Context, r *report.DeploymentReport) ([]byte, error)
	Format() Format
}

// BaseGenerator holds formatting helpers shared by every Generator.
type BaseGenerator struct{}

// FormatFloat formats v with the given decimal precision.
func (BaseGenerator) FormatFloat(v float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, v)
}

// FormatPercent renders a [0,1] fraction as a percentage.
func (BaseGenerator) FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// FormatDuration renders a millisecond count at the appropriate unit.
func (BaseGenerator) FormatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%d ms", ms)
	}
	return fmt.Sprintf("%.2f s", float64(ms)/1000)
}

// New returns the Generator for a requested format, or an error if the
// format is not recognized.
func New(format Format) (Generator, error) {
	switch format {
	case FormatJSON:
		return NewJSONGenerator(), nil
	case FormatMarkdown:
		return NewMarkdownGenerator(), nil
	case FormatCSV:
		return NewCSVGenerator(), nil
	case FormatExcel:
		return NewExcelGenerator(), nil
	case FormatPDF:
		return NewPDFGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown report format: %q", format)
	}
}
