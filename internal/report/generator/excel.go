package generator

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"edgeorch/internal/report"
)

// ExcelGenerator renders a DeploymentReport as an .xlsx workbook with one
// sheet per section.
type ExcelGenerator struct {
	BaseGenerator
}

// NewExcelGenerator creates a new Excel generator.
func NewExcelGenerator() *ExcelGenerator {
	return &ExcelGenerator{}
}

// Format returns the generator's output format.
func (g *ExcelGenerator) Format() Format {
	return FormatExcel
}

// Generate renders the report as an .xlsx workbook.
func (g *ExcelGenerator) Generate(ctx context.Context, r *report.DeploymentReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})

	f.SetSheetName("Sheet1", "Topology")
	g.writeTopology(f, "Topology", headerStyle, r)

	f.NewSheet("Placement")
	g.writePlacement(f, "Placement", headerStyle, r)

	f.NewSheet("Invocation Path")
	g.writePath(f, "Invocation Path", headerStyle, r)

	if len(r.Adaptation) > 0 {
		f.NewSheet("Adaptation History")
		g.writeAdaptation(f, "Adaptation History", headerStyle, r)
	}

	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *ExcelGenerator) writeTopology(f *excelize.File, sheet string, style int, r *report.DeploymentReport) {
	headers := []string{"Node ID", "URL", "Alive", "Failure Prob", "RAM Bytes", "HDD Bytes"}
	for i, h := range headers {
		cell := CellByIndex(i, 1)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
	for i, n := range r.Nodes {
		row := i + 2
		f.SetCellValue(sheet, CellByIndex(0, row), n.ID)
		f.SetCellValue(sheet, CellByIndex(1, row), n.URL)
		f.SetCellValue(sheet, CellByIndex(2, row), n.Alive)
		f.SetCellValue(sheet, CellByIndex(3, row), n.FailureProb)
		f.SetCellValue(sheet, CellByIndex(4, row), n.RAMBytes)
		f.SetCellValue(sheet, CellByIndex(5, row), n.HDDBytes)
	}
}

func (g *ExcelGenerator) writePlacement(f *excelize.File, sheet string, style int, r *report.DeploymentReport) {
	headers := []string{"Microservice", "Node IDs", "Availability", "Degraded"}
	for i, h := range headers {
		cell := CellByIndex(i, 1)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
	for i, rep := range r.Replicas {
		row := i + 2
		f.SetCellValue(sheet, CellByIndex(0, row), rep.MicroserviceID)
		f.SetCellValue(sheet, CellByIndex(1, row), fmtIDs(rep.NodeIDs))
		f.SetCellValue(sheet, CellByIndex(2, row), rep.Availability)
		f.SetCellValue(sheet, CellByIndex(3, row), rep.Degraded)
	}
}

func (g *ExcelGenerator) writePath(f *excelize.File, sheet string, style int, r *report.DeploymentReport) {
	headers := []string{"Microservice", "Node ID"}
	for i, h := range headers {
		cell := CellByIndex(i, 1)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
	for i, hop := range r.Path {
		row := i + 2
		f.SetCellValue(sheet, CellByIndex(0, row), hop.MicroserviceID)
		f.SetCellValue(sheet, CellByIndex(1, row), hop.NodeID)
	}
}

func (g *ExcelGenerator) writeAdaptation(f *excelize.File, sheet string, style int, r *report.DeploymentReport) {
	headers := []string{"Trigger", "Degraded", "Path Feasible", "Duration (ms)", "Occurred At"}
	for i, h := range headers {
		cell := CellByIndex(i, 1)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
	for i, ev := range r.Adaptation {
		row := i + 2
		f.SetCellValue(sheet, CellByIndex(0, row), string(ev.Trigger))
		f.SetCellValue(sheet, CellByIndex(1, row), ev.Degraded)
		f.SetCellValue(sheet, CellByIndex(2, row), ev.PathFeasible)
		f.SetCellValue(sheet, CellByIndex(3, row), ev.DurationMs)
		f.SetCellValue(sheet, CellByIndex(4, row), ev.OccurredAt.Format("2006-01-02 15:04:05"))
	}
}

func fmtIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// ColName converts a zero-based column index into its letter name
// (0 -> A, 25 -> Z, 26 -> AA).
func ColName(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}

// CellByIndex returns the cell address for a zero-based column index and
// a one-based row index.
func CellByIndex(colIndex, rowIndex int) string {
	return ColName(colIndex) + strconv.Itoa(rowIndex)
}
