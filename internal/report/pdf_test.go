package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/okvist/equipstats/internal/core"
)

func sampleDataset(n int) core.Dataset {
	records := make([]core.EquipmentRecord, 0, n)
	for i := 0; i < n; i++ {
		flow := float64(i)
		records = append(records, core.EquipmentRecord{
			EquipmentName: fmt.Sprintf("Pump%d", i),
			EquipmentType: "Pump",
			Flowrate:      &flow,
		})
	}
	return core.Dataset{
		ID:         7,
		Filename:   "plant.csv",
		UploadDate: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		RowCount:   n,
		Summary:    core.Summarize(records),
		Records:    records,
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	doc, err := Render(sampleDataset(3))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF")) {
		t.Errorf("document does not start with %%PDF magic, got %q", doc[:minInt(8, len(doc))])
	}
}

func TestRender_EmptyDataset(t *testing.T) {
	doc, err := Render(sampleDataset(0))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(doc) == 0 {
		t.Error("empty dataset produced no document")
	}
}

// Thousands of rows must still render, spilling across pages.
func TestRender_ManyRows(t *testing.T) {
	doc, err := Render(sampleDataset(2000))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF")) {
		t.Error("large dataset did not render to a PDF")
	}
}

func TestRender_NilRecordValues(t *testing.T) {
	ds := sampleDataset(1)
	ds.Records[0].Flowrate = nil
	ds.Records[0].Pressure = nil
	ds.Records[0].Temperature = nil
	ds.Summary = core.Summarize(ds.Records)

	if _, err := Render(ds); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
}

func TestRender_MissingSummary(t *testing.T) {
	ds := sampleDataset(1)
	ds.Summary = nil

	_, err := Render(ds)
	if err != core.ErrIncompleteDataset {
		t.Errorf("Render() error = %v, want ErrIncompleteDataset", err)
	}
}

func TestRender_Deterministic(t *testing.T) {
	ds := sampleDataset(5)
	first, err := Render(ds)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	second, err := Render(ds)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(first) != len(second) {
		t.Errorf("renders differ in size: %d vs %d", len(first), len(second))
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(42); got != "equipment_report_42.pdf" {
		t.Errorf("Filename(42) = %q", got)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
