package pages

import (
	"net/http"
	"strconv"

	"github.com/buemura/rook/internal/store"
	"github.com/buemura/rook/internal/web/jobs"
	"github.com/buemura/rook/internal/web/templates"
	"github.com/buemura/rook/pkg/types"
	"github.com/go-chi/chi/v5"
)

// IndexData is the template data for the index (run form) page.
type IndexData struct {
	Speeds   []string
	Defaults types.ScanOptions
}

// RunListData is the template data for the runs page.
type RunListData struct {
	Runs       []jobs.View
	HasRunning bool
}

// RunDetailData is the template data for the run detail page.
type RunDetailData struct {
	Run jobs.View
}

// HistoryData is the template data for the stored record list.
type HistoryData struct {
	Rows         []store.ScanRecordRow
	Target       string
	StoreEnabled bool
}

// RecordData is the template data for one stored record.
type RecordData struct {
	ID     uint
	Record *types.ScanRecord
}

// NotFoundData is the template data for the 404 page.
type NotFoundData struct {
	Message string
}

// PageHandlers serves the HTML pages of the web application.
type PageHandlers struct {
	manager  *jobs.Manager
	store    *store.Store
	defaults types.ScanOptions
}

// NewPageHandlers creates a new PageHandlers. st may be nil.
func NewPageHandlers(manager *jobs.Manager, st *store.Store, defaults types.ScanOptions) *PageHandlers {
	return &PageHandlers{
		manager:  manager,
		store:    st,
		defaults: defaults,
	}
}

// Index renders the landing page with the run form.
func (h *PageHandlers) Index(w http.ResponseWriter, r *http.Request) {
	data := IndexData{
		Speeds:   []string{string(types.SpeedCareful), string(types.SpeedFast)},
		Defaults: h.defaults,
	}
	if err := templates.RenderPage(w, "index.html", data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// RunList renders the list of runs started by this server.
func (h *PageHandlers) RunList(w http.ResponseWriter, r *http.Request) {
	runs := h.manager.List()
	hasRunning := false
	for _, v := range runs {
		if !v.Status.Done() {
			hasRunning = true
			break
		}
	}
	data := RunListData{Runs: runs, HasRunning: hasRunning}
	if err := templates.RenderPage(w, "runs.html", data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// RunDetail renders the live view of a single run.
func (h *PageHandlers) RunDetail(w http.ResponseWriter, r *http.Request) {
	view, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.notFound(w, "Run not found.")
		return
	}
	if err := templates.RenderPage(w, "run_detail.html", RunDetailData{Run: view}); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// History renders the stored records.
func (h *PageHandlers) History(w http.ResponseWriter, r *http.Request) {
	data := HistoryData{Target: r.URL.Query().Get("target"), StoreEnabled: h.store != nil}
	if h.store != nil {
		rows, err := h.store.List(r.Context(), store.ListOptions{Target: data.Target, Limit: 200})
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		data.Rows = rows
	}
	if err := templates.RenderPage(w, "history.html", data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// Record renders one stored record.
func (h *PageHandlers) Record(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.notFound(w, "Record storage is not configured.")
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.notFound(w, "Record not found.")
		return
	}
	rec, err := h.store.Get(r.Context(), uint(id))
	if err != nil {
		h.notFound(w, "Record not found.")
		return
	}
	if err := templates.RenderPage(w, "record.html", RecordData{ID: uint(id), Record: rec}); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// NotFound renders the 404 page for unknown routes.
func (h *PageHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.notFound(w, "Page not found.")
}

func (h *PageHandlers) notFound(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	templates.RenderPage(w, "not_found.html", NotFoundData{Message: msg})
}
