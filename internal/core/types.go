// Package core provides the dataset pipeline: CSV parsing, summary
// aggregation and ingestion orchestration. It has no HTTP dependencies
// and can be driven by any transport.
package core

import (
	"context"
	"errors"
	"time"
)

// EquipmentRecord is one observation row from an uploaded file.
// Numeric parameters are pointers so that blank or unparseable cells
// serialize as JSON null and are excluded from averages.
type EquipmentRecord struct {
	EquipmentName string   `json:"equipment_name"`
	EquipmentType string   `json:"equipment_type"`
	Flowrate      *float64 `json:"flowrate"`
	Pressure      *float64 `json:"pressure"`
	Temperature   *float64 `json:"temperature"`
}

// DatasetSummary holds statistics derived from a dataset's records.
// Averages and min/max cover only records with a defined value for
// that field; all values are 0 when no record is eligible.
type DatasetSummary struct {
	AvgFlowrate    float64        `json:"avg_flowrate"`
	AvgPressure    float64        `json:"avg_pressure"`
	AvgTemperature float64        `json:"avg_temperature"`
	MinFlowrate    float64        `json:"min_flowrate"`
	MaxFlowrate    float64        `json:"max_flowrate"`
	MinPressure    float64        `json:"min_pressure"`
	MaxPressure    float64        `json:"max_pressure"`
	MinTemperature float64        `json:"min_temperature"`
	MaxTemperature float64        `json:"max_temperature"`
	EquipmentTypes map[string]int `json:"equipment_types"`
}

// Dataset is the persisted aggregate: records in source-file order plus
// the summary computed once at ingestion. Immutable after creation.
type Dataset struct {
	ID         int64             `json:"id"`
	Filename   string            `json:"filename"`
	UploadDate time.Time         `json:"upload_date"`
	RowCount   int               `json:"row_count"`
	Summary    *DatasetSummary   `json:"summary"`
	Records    []EquipmentRecord `json:"records"`
}

// DatasetMeta is the lightweight listing projection of a Dataset.
type DatasetMeta struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"upload_date"`
	RowCount   int       `json:"row_count"`
}

// TypeCount is one entry of the cross-dataset type distribution.
type TypeCount struct {
	EquipmentType string `json:"equipment_type"`
	Count         int64  `json:"count"`
}

// Stats are service-wide totals across all stored datasets.
type Stats struct {
	TotalDatasets    int64       `json:"total_datasets"`
	TotalRecords     int64       `json:"total_records"`
	TypeDistribution []TypeCount `json:"type_distribution"`
}

// Store persists datasets. Save must be atomic: either the full dataset
// becomes visible to Get/List or nothing does. Assigned ids are never
// reused, even after Delete.
type Store interface {
	Save(ctx context.Context, filename string, uploadDate time.Time, records []EquipmentRecord, summary *DatasetSummary) (Dataset, error)
	Get(ctx context.Context, id int64) (Dataset, error)
	List(ctx context.Context) ([]DatasetMeta, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (Stats, error)

	// PruneOldest deletes all but the keep newest datasets and returns
	// the deleted ids.
	PruneOldest(ctx context.Context, keep int) ([]int64, error)
}

// ErrNotFound is returned by Store lookups for unknown dataset ids.
var ErrNotFound = errors.New("dataset not found")

// ErrStoreUnavailable wraps persistence-layer failures. The upload is
// safe to retry as a whole; nothing was persisted.
var ErrStoreUnavailable = errors.New("store unavailable")
