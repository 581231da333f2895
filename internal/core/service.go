package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IngestPhase is the stage an ingestion has reached.
type IngestPhase string

const (
	PhaseReceived    IngestPhase = "received"
	PhaseParsing     IngestPhase = "parsing"
	PhaseAggregating IngestPhase = "aggregating"
	PhasePersisting  IngestPhase = "persisting"
	PhaseComplete    IngestPhase = "complete"
	PhaseFailed      IngestPhase = "failed"
)

// IngestResult is the diagnostic record of one ingestion attempt,
// including the rows that were skipped. It is kept in a bounded
// in-memory registry and is not part of the public HTTP contract.
type IngestResult struct {
	ID        string
	Filename  string
	Phase     IngestPhase
	DatasetID int64
	RowCount  int
	RowErrors []RowError
	Error     string
	Started   time.Time
	Duration  time.Duration
}

// IngestObserver receives metrics about completed ingestions.
type IngestObserver interface {
	ObserveIngest(status string, duration time.Duration, rowsSkipped int)
}

// ServiceOptions tune the ingestion service.
type ServiceOptions struct {
	// RetentionMax caps the number of stored datasets; the oldest are
	// pruned after each successful upload. 0 disables pruning.
	RetentionMax int

	// MaxResults bounds the diagnostic registry (default 100).
	MaxResults int

	// Observer is notified of ingestion outcomes. May be nil.
	Observer IngestObserver
}

// Service orchestrates Parse -> Summarize -> Store.Save for uploads and
// fronts all dataset reads. It is the only component that writes to the
// store.
type Service struct {
	store        Store
	retentionMax int
	maxResults   int
	observer     IngestObserver

	mu      sync.Mutex
	results map[string]*IngestResult
	order   []string // result ids, oldest first
}

// NewService creates a Service backed by the given store.
func NewService(store Store, opts ServiceOptions) *Service {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}
	return &Service{
		store:        store,
		retentionMax: opts.RetentionMax,
		maxResults:   maxResults,
		observer:     opts.Observer,
		results:      make(map[string]*IngestResult),
	}
}

// Ingest runs the full pipeline for one uploaded file: format check,
// parse, aggregate, persist. On any failure no dataset is created and
// the originating error is returned; skipped rows alone do not fail
// the ingestion.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte) (Dataset, error) {
	res := &IngestResult{
		ID:       uuid.NewString(),
		Filename: filename,
		Phase:    PhaseReceived,
		Started:  time.Now(),
	}
	s.track(res)

	log := slog.Default().With("ingest_id", res.ID, "filename", filename)

	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return Dataset{}, s.fail(res, &FormatError{Filename: filename})
	}

	s.setPhase(res, PhaseParsing)
	parsed, err := Parse(data)
	if err != nil {
		return Dataset{}, s.fail(res, err)
	}
	for _, re := range parsed.RowErrors {
		log.Warn("row skipped", "row", re.Row, "reason", re.Reason)
	}

	s.setPhase(res, PhaseAggregating)
	summary := Summarize(parsed.Records)

	s.setPhase(res, PhasePersisting)
	ds, err := s.store.Save(ctx, filename, time.Now().UTC(), parsed.Records, summary)
	if err != nil {
		return Dataset{}, s.fail(res, fmt.Errorf("save dataset: %w", err))
	}

	s.mu.Lock()
	res.Phase = PhaseComplete
	res.DatasetID = ds.ID
	res.RowCount = ds.RowCount
	res.RowErrors = parsed.RowErrors
	res.Duration = time.Since(res.Started)
	skipped := len(res.RowErrors)
	duration := res.Duration
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ObserveIngest("complete", duration, skipped)
	}
	log.Info("ingestion complete",
		"dataset_id", ds.ID,
		"rows", ds.RowCount,
		"rows_skipped", skipped,
		"duration_ms", duration.Milliseconds(),
	)

	if s.retentionMax > 0 {
		// Retention failures must not fail an upload that already
		// persisted; they are logged and retried by the next sweep.
		if err := s.PruneRetention(ctx); err != nil {
			log.Warn("retention prune failed", "error", err)
		}
	}

	return ds, nil
}

// Dataset returns a stored dataset by id.
func (s *Service) Dataset(ctx context.Context, id int64) (Dataset, error) {
	return s.store.Get(ctx, id)
}

// Datasets lists stored datasets, newest first.
func (s *Service) Datasets(ctx context.Context) ([]DatasetMeta, error) {
	return s.store.List(ctx)
}

// DeleteDataset removes a dataset. Its id is never reassigned.
func (s *Service) DeleteDataset(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

// Statistics returns totals across all stored datasets.
func (s *Service) Statistics(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}

// PruneRetention deletes the oldest datasets beyond the retention cap.
// Safe to call from a scheduler; a no-op when retention is disabled.
func (s *Service) PruneRetention(ctx context.Context) error {
	if s.retentionMax <= 0 {
		return nil
	}
	deleted, err := s.store.PruneOldest(ctx, s.retentionMax)
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		slog.Info("retention pruned datasets", "ids", deleted, "keep", s.retentionMax)
	}
	return nil
}

// IngestResult returns the diagnostic record for an ingestion id.
func (s *Service) IngestResult(id string) (IngestResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[id]
	if !ok {
		return IngestResult{}, false
	}
	return cloneResult(res), true
}

// RecentIngests returns the tracked ingestion results, oldest first.
func (s *Service) RecentIngests() []IngestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]IngestResult, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneResult(s.results[id]))
	}
	return out
}

func (s *Service) track(res *IngestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.ID] = res
	s.order = append(s.order, res.ID)
	for len(s.order) > s.maxResults {
		delete(s.results, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Service) setPhase(res *IngestResult, phase IngestPhase) {
	s.mu.Lock()
	res.Phase = phase
	s.mu.Unlock()
}

// fail marks the result failed and returns err unchanged so callers can
// propagate it in one expression.
func (s *Service) fail(res *IngestResult, err error) error {
	s.mu.Lock()
	res.Phase = PhaseFailed
	res.Error = err.Error()
	res.Duration = time.Since(res.Started)
	duration := res.Duration
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ObserveIngest("failed", duration, 0)
	}
	slog.Warn("ingestion failed", "ingest_id", res.ID, "filename", res.Filename, "error", err)
	return err
}

func cloneResult(res *IngestResult) IngestResult {
	out := *res
	out.RowErrors = append([]RowError(nil), res.RowErrors...)
	return out
}
