package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okvist/equipstats/internal/core"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS datasets (
    id          BIGSERIAL PRIMARY KEY,
    filename    TEXT NOT NULL,
    upload_date TIMESTAMPTZ NOT NULL,
    row_count   INTEGER NOT NULL,
    summary     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS equipment_records (
    id             BIGSERIAL PRIMARY KEY,
    dataset_id     BIGINT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
    position       INTEGER NOT NULL,
    equipment_name TEXT NOT NULL,
    equipment_type TEXT NOT NULL,
    flowrate       DOUBLE PRECISION,
    pressure       DOUBLE PRECISION,
    temperature    DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_records_dataset ON equipment_records(dataset_id, position);
CREATE INDEX IF NOT EXISTS idx_datasets_upload ON datasets(upload_date DESC, id DESC);
`

// Postgres is a core.Store backed by PostgreSQL via pgx. BIGSERIAL ids
// come from a sequence that never recycles values, so deleted ids stay
// retired.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, filename string, uploadDate time.Time, records []core.EquipmentRecord, summary *core.DatasetSummary) (core.Dataset, error) {
	if summary == nil {
		return core.Dataset{}, core.ErrIncompleteDataset
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("marshal summary: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return core.Dataset{}, unavailable(err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO datasets (filename, upload_date, row_count, summary) VALUES ($1, $2, $3, $4) RETURNING id`,
		filename, uploadDate.UTC(), len(records), summaryJSON,
	).Scan(&id)
	if err != nil {
		return core.Dataset{}, unavailable(err)
	}

	batch := &pgx.Batch{}
	for pos, rec := range records {
		batch.Queue(
			`INSERT INTO equipment_records (dataset_id, position, equipment_name, equipment_type, flowrate, pressure, temperature)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, pos, rec.EquipmentName, rec.EquipmentType, rec.Flowrate, rec.Pressure, rec.Temperature,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return core.Dataset{}, unavailable(err)
	}

	if err := tx.Commit(ctx); err != nil {
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

func (p *Postgres) Get(ctx context.Context, id int64) (core.Dataset, error) {
	var (
		ds          core.Dataset
		summaryJSON []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, filename, upload_date, row_count, summary FROM datasets WHERE id = $1`, id,
	).Scan(&ds.ID, &ds.Filename, &ds.UploadDate, &ds.RowCount, &summaryJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Dataset{}, core.ErrNotFound
	}
	if err != nil {
		return core.Dataset{}, unavailable(err)
	}

	summary := &core.DatasetSummary{}
	if err := json.Unmarshal(summaryJSON, summary); err != nil {
		return core.Dataset{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	if summary.EquipmentTypes == nil {
		summary.EquipmentTypes = map[string]int{}
	}
	ds.Summary = summary

	rows, err := p.pool.Query(ctx,
		`SELECT equipment_name, equipment_type, flowrate, pressure, temperature
		 FROM equipment_records WHERE dataset_id = $1 ORDER BY position`, id,
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

func (p *Postgres) List(ctx context.Context) ([]core.DatasetMeta, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, filename, upload_date, row_count FROM datasets ORDER BY upload_date DESC, id DESC`,
	)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	metas := make([]core.DatasetMeta, 0)
	for rows.Next() {
		var meta core.DatasetMeta
		if err := rows.Scan(&meta.ID, &meta.Filename, &meta.UploadDate, &meta.RowCount); err != nil {
			return nil, unavailable(err)
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (p *Postgres) Stats(ctx context.Context) (core.Stats, error) {
	var stats core.Stats
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM datasets`).Scan(&stats.TotalDatasets); err != nil {
		return core.Stats{}, unavailable(err)
	}
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM equipment_records`).Scan(&stats.TotalRecords); err != nil {
		return core.Stats{}, unavailable(err)
	}

	rows, err := p.pool.Query(ctx,
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

func (p *Postgres) PruneOldest(ctx context.Context, keep int) ([]int64, error) {
	if keep <= 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx,
		`DELETE FROM datasets WHERE id IN (
		     SELECT id FROM datasets ORDER BY upload_date DESC, id DESC OFFSET $1
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
