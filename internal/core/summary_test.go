package core

import (
	"math"
	"testing"
)

func TestSummarize_Averages(t *testing.T) {
	records := []EquipmentRecord{
		{EquipmentName: "Pump1", EquipmentType: "Pump", Flowrate: f(10), Pressure: f(5), Temperature: f(300)},
		{EquipmentName: "Pump2", EquipmentType: "Pump", Flowrate: f(20), Pressure: f(7), Temperature: f(320)},
		{EquipmentName: "Valve1", EquipmentType: "Valve", Flowrate: f(30), Pressure: f(9), Temperature: f(340)},
	}

	s := Summarize(records)

	if math.Abs(s.AvgFlowrate-20) > 1e-9 {
		t.Errorf("AvgFlowrate = %v, want 20", s.AvgFlowrate)
	}
	if math.Abs(s.AvgPressure-7) > 1e-9 {
		t.Errorf("AvgPressure = %v, want 7", s.AvgPressure)
	}
	if math.Abs(s.AvgTemperature-320) > 1e-9 {
		t.Errorf("AvgTemperature = %v, want 320", s.AvgTemperature)
	}
	if s.MinFlowrate != 10 || s.MaxFlowrate != 30 {
		t.Errorf("flowrate min/max = %v/%v, want 10/30", s.MinFlowrate, s.MaxFlowrate)
	}
}

// Null cells are excluded from the average but the row still counts
// toward its type.
func TestSummarize_NullsExcludedFromAverage(t *testing.T) {
	records := []EquipmentRecord{
		{EquipmentName: "Pump1", EquipmentType: "Pump", Flowrate: f(10), Pressure: f(5), Temperature: f(300)},
		{EquipmentName: "Valve1", EquipmentType: "Valve", Pressure: f(3), Temperature: f(250)},
	}

	s := Summarize(records)

	if s.AvgFlowrate != 10 {
		t.Errorf("AvgFlowrate = %v, want 10 (single eligible row)", s.AvgFlowrate)
	}
	if math.Abs(s.AvgPressure-4) > 1e-9 {
		t.Errorf("AvgPressure = %v, want 4", s.AvgPressure)
	}
	if s.EquipmentTypes["Pump"] != 1 || s.EquipmentTypes["Valve"] != 1 {
		t.Errorf("EquipmentTypes = %v, want Pump:1 Valve:1", s.EquipmentTypes)
	}
}

func TestSummarize_ZeroRecords(t *testing.T) {
	s := Summarize(nil)

	for name, v := range map[string]float64{
		"AvgFlowrate":    s.AvgFlowrate,
		"AvgPressure":    s.AvgPressure,
		"AvgTemperature": s.AvgTemperature,
		"MinFlowrate":    s.MinFlowrate,
		"MaxTemperature": s.MaxTemperature,
	} {
		if v != 0 || math.IsNaN(v) {
			t.Errorf("%s = %v, want 0", name, v)
		}
	}
	if s.EquipmentTypes == nil || len(s.EquipmentTypes) != 0 {
		t.Errorf("EquipmentTypes = %v, want empty non-nil map", s.EquipmentTypes)
	}
}

func TestSummarize_NoEligibleValuesForField(t *testing.T) {
	records := []EquipmentRecord{
		{EquipmentName: "Pump1", EquipmentType: "Pump"},
		{EquipmentName: "Pump2", EquipmentType: "Pump"},
	}

	s := Summarize(records)

	if s.AvgFlowrate != 0 || s.MinFlowrate != 0 || s.MaxFlowrate != 0 {
		t.Errorf("flowrate stats = %v/%v/%v, want zeros", s.AvgFlowrate, s.MinFlowrate, s.MaxFlowrate)
	}
	if s.EquipmentTypes["Pump"] != 2 {
		t.Errorf("EquipmentTypes = %v, want Pump:2", s.EquipmentTypes)
	}
}

// Type counting is case-sensitive by contract: "pump" and "Pump" are
// distinct categories.
func TestSummarize_CaseSensitiveTypes(t *testing.T) {
	records := []EquipmentRecord{
		{EquipmentName: "A", EquipmentType: "Pump"},
		{EquipmentName: "B", EquipmentType: "pump"},
	}

	s := Summarize(records)

	if len(s.EquipmentTypes) != 2 {
		t.Errorf("EquipmentTypes = %v, want two distinct categories", s.EquipmentTypes)
	}
}

func TestSummarize_TypeCountsSumToRecordCount(t *testing.T) {
	records := []EquipmentRecord{
		{EquipmentName: "A", EquipmentType: "Pump", Flowrate: f(1)},
		{EquipmentName: "B", EquipmentType: "Valve"},
		{EquipmentName: "C", EquipmentType: "Pump"},
		{EquipmentName: "D", EquipmentType: "Reactor", Temperature: f(600)},
	}

	s := Summarize(records)

	total := 0
	for _, n := range s.EquipmentTypes {
		total += n
	}
	if total != len(records) {
		t.Errorf("sum of type counts = %d, want %d", total, len(records))
	}
}

func TestSummarize_Deterministic(t *testing.T) {
	records := []EquipmentRecord{
		{EquipmentName: "A", EquipmentType: "Pump", Flowrate: f(0.1), Pressure: f(0.2), Temperature: f(0.3)},
		{EquipmentName: "B", EquipmentType: "Pump", Flowrate: f(0.4), Pressure: f(0.5), Temperature: f(0.6)},
		{EquipmentName: "C", EquipmentType: "Valve", Flowrate: f(0.7), Pressure: f(0.8), Temperature: f(0.9)},
	}

	first := Summarize(records)
	for i := 0; i < 10; i++ {
		again := Summarize(records)
		if again.AvgFlowrate != first.AvgFlowrate || again.AvgPressure != first.AvgPressure || again.AvgTemperature != first.AvgTemperature {
			t.Fatal("Summarize is not deterministic")
		}
	}
}
