// Package store provides core.Store implementations backed by SQLite
// (the default, zero-ops embedded database) and PostgreSQL.
//
// Both implementations satisfy the same contract: Save is atomic
// (single transaction), ids are assigned by the database and never
// reused after deletion, and List returns newest-first.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okvist/equipstats/internal/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS datasets (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    filename    TEXT NOT NULL,
    upload_date TEXT NOT NULL,
    row_count   INTEGER NOT NULL,
    summary     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equipment_records (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    dataset_id     INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
    position       INTEGER NOT NULL,
    equipment_name TEXT NOT NULL,
    equipment_type TEXT NOT NULL,
    flowrate       REAL,
    pressure       REAL,
    temperature    REAL
);

CREATE INDEX IF NOT EXISTS idx_records_dataset ON equipment_records(dataset_id, position);
CREATE INDEX IF NOT EXISTS idx_datasets_upload ON datasets(upload_date DESC, id DESC);
`

// SQLite is a core.Store backed by an embedded SQLite database.
// AUTOINCREMENT keeps deleted ids retired forever, which satisfies the
// no-id-reuse rule without an application-side counter.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the database at path and
// ensures the schema exists. Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc.org/sqlite serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent uploads.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Save persists the dataset and its records in one transaction.
func (s *SQLite) Save(ctx context.Context, filename string, uploadDate time.Time, records []core.EquipmentRecord, summary *core.DatasetSummary) (core.Dataset, error) {
	if summary == nil {
		return core.Dataset{}, core.ErrIncompleteDataset
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("marshal summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Dataset{}, unavailable(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (filename, upload_date, row_count, summary) VALUES (?, ?, ?, ?)`,
		filename, uploadDate.UTC().Format(time.RFC3339Nano), len(records), string(summaryJSON),
	)
	if err != nil {
		return core.Dataset{}, unavailable(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Dataset{}, unavailable(err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO equipment_records (dataset_id, position, equipment_name, equipment_type, flowrate, pressure, temperature)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return core.Dataset{}, unavailable(err)
	}
	defer stmt.Close()

	for pos, rec := range records {
		if _, err := stmt.ExecContext(ctx, id, pos, rec.EquipmentName, rec.EquipmentType, rec.Flowrate, rec.Pressure, rec.Temperature); err != nil {
			return core.Dataset{}, unavailable(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Dataset{}, unavailable(err)
	}

	return core.Dataset{
		ID:         id,
		Filename:   filename,
		UploadDate: uploadDate.UTC(),
		RowCount:   len(records),
		Summary:    summary,
		Records:    append([]core.EquipmentRecord(nil), records...),
	}, nil
}

// Get returns the full dataset for id, or core.ErrNotFound.
func (s *SQLite) Get(ctx context.Context, id int64) (core.Dataset, error) {
	var (
		ds          core.Dataset
		uploadDate  string
		summaryJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, upload_date, row_count, summary FROM datasets WHERE id = ?`, id,
	).Scan(&ds.ID, &ds.Filename, &uploadDate, &ds.RowCount, &summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Dataset{}, core.ErrNotFound
	}
	if err != nil {
		return core.Dataset{}, unavailable(err)
	}

	if ds.UploadDate, err = time.Parse(time.RFC3339Nano, uploadDate); err != nil {
		return core.Dataset{}, fmt.Errorf("parse upload_date: %w", err)
	}
	summary := &core.DatasetSummary{}
	if err := json.Unmarshal([]byte(summaryJSON), summary); err != nil {
		return core.Dataset{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	if summary.EquipmentTypes == nil {
		summary.EquipmentTypes = map[string]int{}
	}
	ds.Summary = summary

	rows, err := s.db.QueryContext(ctx,
		`SELECT equipment_name, equipment_type, flowrate, pressure, temperature
		 FROM equipment_records WHERE dataset_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return core.Dataset{}, unavailable(err)
	}
	defer rows.Close()

	ds.Records = make([]core.EquipmentRecord, 0, ds.RowCount)
	for rows.Next() {
		var rec core.EquipmentRecord
		if err := rows.Scan(&rec.EquipmentName, &rec.EquipmentType, &rec.Flowrate, &rec.Pressure, &rec.Temperature); err != nil {
			return core.Dataset{}, unavailable(err)
		}
		ds.Records = append(ds.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return core.Dataset{}, unavailable(err)
	}

	return ds, nil
}

// List returns dataset metadata, newest first.
func (s *SQLite) List(ctx context.Context) ([]core.DatasetMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, upload_date, row_count FROM datasets ORDER BY upload_date DESC, id DESC`,
	)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	metas := make([]core.DatasetMeta, 0)
	for rows.Next() {
		var (
			meta       core.DatasetMeta
			uploadDate string
		)
		if err := rows.Scan(&meta.ID, &meta.Filename, &uploadDate, &meta.RowCount); err != nil {
			return nil, unavailable(err)
		}
		if meta.UploadDate, err = time.Parse(time.RFC3339Nano, uploadDate); err != nil {
			return nil, fmt.Errorf("parse upload_date: %w", err)
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// Delete removes a dataset and its records.
func (s *SQLite) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Stats returns totals and the type distribution across all datasets.
func (s *SQLite) Stats(ctx context.Context) (core.Stats, error) {
	var stats core.Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets`).Scan(&stats.TotalDatasets); err != nil {
		return core.Stats{}, unavailable(err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipment_records`).Scan(&stats.TotalRecords); err != nil {
		return core.Stats{}, unavailable(err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT equipment_type, COUNT(*) AS n FROM equipment_records
		 GROUP BY equipment_type ORDER BY n DESC, equipment_type`,
	)
	if err != nil {
		return core.Stats{}, unavailable(err)
	}
	defer rows.Close()

	stats.TypeDistribution = make([]core.TypeCount, 0)
	for rows.Next() {
		var tc core.TypeCount
		if err := rows.Scan(&tc.EquipmentType, &tc.Count); err != nil {
			return core.Stats{}, unavailable(err)
		}
		stats.TypeDistribution = append(stats.TypeDistribution, tc)
	}
	return stats, rows.Err()
}

// PruneOldest deletes all but the keep newest datasets.
func (s *SQLite) PruneOldest(ctx context.Context, keep int) ([]int64, error) {
	if keep <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`DELETE FROM datasets WHERE id IN (
		     SELECT id FROM datasets ORDER BY upload_date DESC, id DESC LIMIT -1 OFFSET ?
		 ) RETURNING id`, keep,
	)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var deleted []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable(err)
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

// unavailable wraps driver failures in the retryable-store sentinel.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
}
