package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okvist/equipstats/internal/core"
	"github.com/okvist/equipstats/internal/logging"
	"github.com/okvist/equipstats/internal/report"
)

// handleListDatasets returns dataset metadata, newest first.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	metas, err := s.service.Datasets(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

// handleUpload ingests a multipart CSV upload and returns the full
// dataset on success.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, core.UserMessage{
			Message: "No file provided",
			Action:  "Attach a CSV file in the \"file\" form field",
			Code:    "FILE003",
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	ds, err := s.service.Ingest(r.Context(), header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ds)
}

// handleGetDataset returns the full dataset JSON for an id.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ds, err := s.service.Dataset(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// handleDeleteDataset removes a dataset. Its id stays retired.
func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.service.DeleteDataset(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDownloadReport renders the dataset's PDF report.
func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ds, err := s.service.Dataset(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	doc, err := report.Render(ds)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.IncReportRendered()
	}

	logging.FromContext(r.Context()).Info("report rendered", "dataset_id", id, "bytes", len(doc))

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", report.Filename(id)))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.Write(doc)
}

// handleStatistics returns totals across all stored datasets.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Statistics(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// datasetID parses the {id} route parameter. Non-numeric ids map to
// ErrNotFound: they cannot name any dataset.
func datasetID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, core.ErrNotFound
	}
	return id, nil
}
