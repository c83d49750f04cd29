package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/buemura/rook/internal/output"
	"github.com/buemura/rook/internal/store"
	"github.com/buemura/rook/internal/web/jobs"
	"github.com/buemura/rook/pkg/types"
	"github.com/go-chi/chi/v5"
)

// Handlers holds dependencies for the REST API handlers.
type Handlers struct {
	Manager  *jobs.Manager
	Store    *store.Store
	Defaults types.ScanOptions
}

// NewHandlers creates API handlers with the given dependencies. st may be nil,
// in which case the record endpoints answer 503.
func NewHandlers(manager *jobs.Manager, st *store.Store, defaults types.ScanOptions) *Handlers {
	return &Handlers{Manager: manager, Store: st, Defaults: defaults}
}

// CreateRun handles POST /api/v1/runs.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateRunRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	targets, err := req.targets()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.Manager.Create(targets, req.options(h.Defaults))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Manager.Start(job.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start run: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":      job.ID,
		"status":  jobs.StatusRunning,
		"targets": targets,
	})
}

// ListRuns handles GET /api/v1/runs.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	views := h.Manager.List()

	type runSummary struct {
		ID           string           `json:"id"`
		Targets      []string         `json:"targets"`
		Speed        types.Speed      `json:"speed"`
		Status       jobs.JobStatus   `json:"status"`
		CreatedAt    time.Time        `json:"created_at"`
		Progress     jobs.JobProgress `json:"progress"`
		FailedStages int              `json:"failed_stages"`
		FindingCount int              `json:"finding_count"`
	}

	summaries := make([]runSummary, len(views))
	for i, v := range views {
		summaries[i] = runSummary{
			ID:           v.ID,
			Targets:      v.Targets,
			Speed:        v.Speed,
			Status:       v.Status,
			CreatedAt:    v.CreatedAt,
			Progress:     v.Progress,
			FailedStages: v.FailedStages(),
			FindingCount: v.FindingCount(),
		}
	}

	writeJSON(w, http.StatusOK, summaries)
}

// GetRun handles GET /api/v1/runs/{id}.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	view, err := h.Manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CancelRun handles POST /api/v1/runs/{id}/cancel.
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Manager.Cancel(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

// GetRunReport handles GET /api/v1/runs/{id}/report. Unfinished runs render the
// records collected so far.
func (h *Handlers) GetRunReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Manager.Report(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "html"
	}
	formatter, err := output.GetFormatter(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, report.SortedRecords()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render report: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// DeleteRun handles DELETE /api/v1/runs/{id}.
func (h *Handlers) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRecords handles GET /api/v1/records.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "record store is not configured")
		return
	}

	q := r.URL.Query()
	opts := store.ListOptions{RunID: q.Get("run"), Target: q.Get("target"), Limit: 100}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		opts.Offset = n
	}

	rows, err := h.Store.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []store.ScanRecordRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetRecord handles GET /api/v1/records/{id}.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "record store is not configured")
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	rec, err := h.Store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /api/v1/records/{id}.
func (h *Handlers) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "record store is not configured")
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	err := h.Store.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func recordID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return 0, false
	}
	return uint(n), true
}

func contentType(format string) string {
	switch format {
	case "json":
		return "application/json"
	case "markdown":
		return "text/markdown; charset=utf-8"
	case "table":
		return "text/plain; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}
