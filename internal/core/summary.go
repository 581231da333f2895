package core

// Summarize computes dataset statistics in a single pass over the
// records, in record order. Each numeric field contributes to its own
// average/min/max only when the record carries a value for it, so a
// field with zero eligible records yields 0 rather than NaN.
//
// Equipment types are counted by exact, case-sensitive string match.
// Inconsistent casing in source data therefore produces separate
// categories; normalizing is deliberately left to data owners.
func Summarize(records []EquipmentRecord) *DatasetSummary {
	var flow, press, temp fieldAgg
	types := make(map[string]int)

	for _, rec := range records {
		flow.add(rec.Flowrate)
		press.add(rec.Pressure)
		temp.add(rec.Temperature)
		types[rec.EquipmentType]++
	}

	return &DatasetSummary{
		AvgFlowrate:    flow.avg(),
		AvgPressure:    press.avg(),
		AvgTemperature: temp.avg(),
		MinFlowrate:    flow.min,
		MaxFlowrate:    flow.max,
		MinPressure:    press.min,
		MaxPressure:    press.max,
		MinTemperature: temp.min,
		MaxTemperature: temp.max,
		EquipmentTypes: types,
	}
}

// fieldAgg accumulates one numeric field. min/max stay 0 until the
// first eligible value arrives.
type fieldAgg struct {
	sum      float64
	count    int
	min, max float64
}

func (a *fieldAgg) add(v *float64) {
	if v == nil {
		return
	}
	if a.count == 0 || *v < a.min {
		a.min = *v
	}
	if a.count == 0 || *v > a.max {
		a.max = *v
	}
	a.sum += *v
	a.count++
}

func (a *fieldAgg) avg() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}
