// Package report renders a stored dataset as a printable PDF document:
// a metadata header, the summary statistics, the equipment type
// distribution and the full record table in dataset order.
package report

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/jung-kurt/gofpdf"

	"github.com/okvist/equipstats/internal/core"
)

// Filename returns the download name for a dataset's report.
func Filename(id int64) string {
	return fmt.Sprintf("equipment_report_%d.pdf", id)
}

const bottomMargin = 270.0 // mm; start a new page past this Y

// Render produces the PDF bytes for a dataset. The renderer never
// computes statistics itself; a dataset without a summary is an
// invariant violation and returns core.ErrIncompleteDataset.
func Render(ds core.Dataset) ([]byte, error) {
	if ds.Summary == nil {
		return nil, core.ErrIncompleteDataset
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Equipment Analysis Report", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Equipment Analysis Report", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	writeMetaLine(pdf, "Filename", ds.Filename)
	writeMetaLine(pdf, "Upload Date", ds.UploadDate.Format("2006-01-02 15:04"))
	writeMetaLine(pdf, "Total Records", fmt.Sprintf("%d", ds.RowCount))
	pdf.Ln(6)

	writeSummaryTable(pdf, ds.Summary)
	pdf.Ln(6)
	writeTypeTable(pdf, ds.Summary.EquipmentTypes)
	pdf.Ln(6)
	writeRecordTable(pdf, ds.Records)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMetaLine(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(35, 6, label+":", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func writeSectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

// writeSummaryTable renders the per-parameter statistics at one decimal
// place, matching the display contract.
func writeSummaryTable(pdf *gofpdf.Fpdf, summary *core.DatasetSummary) {
	writeSectionTitle(pdf, "Summary Statistics")

	widths := []float64{50, 40, 40, 40}
	headers := []string{"Parameter", "Average", "Min", "Max"}
	writeTableHeader(pdf, widths, headers)

	rows := [][]string{
		{"Flowrate", num(summary.AvgFlowrate), num(summary.MinFlowrate), num(summary.MaxFlowrate)},
		{"Pressure", num(summary.AvgPressure), num(summary.MinPressure), num(summary.MaxPressure)},
		{"Temperature", num(summary.AvgTemperature), num(summary.MinTemperature), num(summary.MaxTemperature)},
	}
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		for i, cell := range row {
			pdf.CellFormat(widths[i], 7, cell, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// writeTypeTable renders the categorical distribution sorted by count
// descending, then type name, so output is deterministic.
func writeTypeTable(pdf *gofpdf.Fpdf, types map[string]int) {
	writeSectionTitle(pdf, "Equipment Type Distribution")

	widths := []float64{120, 50}
	writeTableHeader(pdf, widths, []string{"Equipment Type", "Count"})

	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if types[names[i]] != types[names[j]] {
			return types[names[i]] > types[names[j]]
		}
		return names[i] < names[j]
	})

	pdf.SetFont("Helvetica", "", 10)
	for _, name := range names {
		ensureRoom(pdf, widths, []string{"Equipment Type", "Count"}, 10)
		pdf.CellFormat(widths[0], 7, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", types[name]), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
}

// writeRecordTable streams the records row by row, starting fresh pages
// with a repeated header as needed. Memory stays proportional to the
// records themselves; gofpdf composes page content incrementally.
func writeRecordTable(pdf *gofpdf.Fpdf, records []core.EquipmentRecord) {
	writeSectionTitle(pdf, "Equipment Records")

	widths := []float64{55, 35, 27, 27, 27}
	headers := []string{"Name", "Type", "Flowrate", "Pressure", "Temperature"}
	writeTableHeader(pdf, widths, headers)

	pdf.SetFont("Helvetica", "", 9)
	for _, rec := range records {
		ensureRoom(pdf, widths, headers, 9)
		pdf.CellFormat(widths[0], 6, rec.EquipmentName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, rec.EquipmentType, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, numPtr(rec.Flowrate), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 6, numPtr(rec.Pressure), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], 6, numPtr(rec.Temperature), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
}

func writeTableHeader(pdf *gofpdf.Fpdf, widths []float64, headers []string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

// ensureRoom starts a new page (with a fresh table header) when the
// next row would run past the bottom margin.
func ensureRoom(pdf *gofpdf.Fpdf, widths []float64, headers []string, bodySize float64) {
	if pdf.GetY() < bottomMargin {
		return
	}
	pdf.AddPage()
	writeTableHeader(pdf, widths, headers)
	pdf.SetFont("Helvetica", "", bodySize)
}

func num(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func numPtr(v *float64) string {
	if v == nil {
		return "-"
	}
	return num(*v)
}
