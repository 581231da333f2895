package core

// parser.go turns raw CSV bytes into validated EquipmentRecords.
//
// Header matching is forgiving: case-insensitive, surrounding whitespace
// ignored, underscores and spaces equivalent, and a small alias set per
// column ("name" or "Equipment Name" both bind the name column). Row
// handling is skip-and-continue: a row missing its name or type becomes
// a RowError but never aborts the parse, and a blank or non-numeric
// parameter cell is stored as nil on an otherwise valid row.

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Canonical column names, used in SchemaError messages.
const (
	colName        = "equipment_name"
	colType        = "equipment_type"
	colFlowrate    = "flowrate"
	colPressure    = "pressure"
	colTemperature = "temperature"
)

var requiredColumns = []string{colName, colType, colFlowrate, colPressure, colTemperature}

// columnAliases maps normalized header cells to canonical columns.
var columnAliases = map[string]string{
	"equipment name": colName,
	"name":           colName,
	"equipment type": colType,
	"type":           colType,
	"flowrate":       colFlowrate,
	"flow rate":      colFlowrate,
	"pressure":       colPressure,
	"temperature":    colTemperature,
	"temp":           colTemperature,
}

// headerIndex maps canonical column names to their position in a row.
type headerIndex map[string]int

// ParseResult is the outcome of parsing one file: the valid records in
// source order plus the rows that were skipped.
type ParseResult struct {
	Records   []EquipmentRecord
	RowErrors []RowError
}

// Parse converts raw CSV bytes into equipment records. It returns a
// *SchemaError if the file is empty or the header lacks a required
// column; per-row problems are collected in the result instead.
func Parse(data []byte) (ParseResult, error) {
	data = sanitizeUTF8(stripBOM(data))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		if len(data) == 0 {
			return ParseResult{}, &SchemaError{Empty: true}
		}
		return ParseResult{}, &SchemaError{Reason: err.Error()}
	}

	// Header is the first non-empty row.
	headerRow := -1
	for i, row := range rows {
		if !isEmptyRow(row) {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return ParseResult{}, &SchemaError{Empty: true}
	}

	idx, missing := buildHeaderIndex(rows[headerRow])
	if len(missing) > 0 {
		return ParseResult{}, &SchemaError{Missing: missing}
	}

	result := ParseResult{Records: make([]EquipmentRecord, 0, len(rows)-headerRow-1)}
	dataRow := 0
	for _, row := range rows[headerRow+1:] {
		if isEmptyRow(row) {
			continue
		}
		dataRow++

		name := cleanCell(cellAt(row, idx[colName]))
		typ := cleanCell(cellAt(row, idx[colType]))
		switch {
		case name == "":
			result.RowErrors = append(result.RowErrors, RowError{Row: dataRow, Reason: "missing equipment name"})
			continue
		case typ == "":
			result.RowErrors = append(result.RowErrors, RowError{Row: dataRow, Reason: "missing equipment type"})
			continue
		}

		result.Records = append(result.Records, EquipmentRecord{
			EquipmentName: name,
			EquipmentType: typ,
			Flowrate:      numericCell(cellAt(row, idx[colFlowrate])),
			Pressure:      numericCell(cellAt(row, idx[colPressure])),
			Temperature:   numericCell(cellAt(row, idx[colTemperature])),
		})
	}

	return result, nil
}

// buildHeaderIndex resolves header cells to canonical columns and
// reports every required column that could not be bound.
func buildHeaderIndex(header []string) (headerIndex, []string) {
	idx := make(headerIndex, len(requiredColumns))
	for pos, cell := range header {
		canonical, ok := columnAliases[normalizeHeader(cell)]
		if !ok {
			continue
		}
		if _, bound := idx[canonical]; !bound {
			idx[canonical] = pos
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	return idx, missing
}

// normalizeHeader lowercases a header cell and collapses underscores
// and runs of whitespace into single spaces.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// cellAt returns the cell at pos, or "" when the row is shorter than
// the header (a missing trailing cell reads as blank).
func cellAt(row []string, pos int) string {
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return row[pos]
}

// cleanCell trims whitespace and strips Excel-style ="..." wrapping.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	}
	return strings.Trim(s, `"`)
}

// numericCell parses a parameter cell, returning nil for blank or
// non-numeric values. Thousands separators are tolerated.
func numericCell(s string) *float64 {
	s = strings.ReplaceAll(cleanCell(s), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// isEmptyRow reports whether every cell is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD so that the
// CSV reader and JSON encoder always see valid UTF-8.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}
	return buf.Bytes()
}
