package pages_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/buemura/rook/internal/store"
	"github.com/buemura/rook/internal/web/jobs"
	"github.com/buemura/rook/internal/web/pages"
	"github.com/buemura/rook/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus/hooks/test"
)

// idleExecutor never runs anything; pages only need the job bookkeeping.
type idleExecutor struct{}

func (idleExecutor) RunInto(ctx context.Context, report *types.RunReport) error {
	report.Finalize(false)
	return nil
}

func newTestManager() *jobs.Manager {
	log, _ := test.NewNullLogger()
	return jobs.NewManager(idleExecutor{}, log)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.Config{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func serve(h http.HandlerFunc, pattern, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get(pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestIndex_Returns200WithRunForm(t *testing.T) {
	defaults := types.DefaultScanOptions()
	defaults.ExtraCommands = []string{"whois {target}"}
	h := pages.NewPageHandlers(newTestManager(), nil, defaults)

	rec := httptest.NewRecorder()
	h.Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Start Run", "careful", "fast", "whois {target}", "run-form"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected index page to contain %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("expected Content-Type text/html, got %q", ct)
	}
}

func TestRunList_ShowsRuns(t *testing.T) {
	mgr := newTestManager()
	h := pages.NewPageHandlers(mgr, nil, types.DefaultScanOptions())

	job, err := mgr.Create([]string{"example.com"}, types.DefaultScanOptions())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := httptest.NewRecorder()
	h.RunList(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "example.com") {
		t.Error("expected runs page to contain target 'example.com'")
	}
	if !strings.Contains(body, "/runs/"+job.ID) {
		t.Error("expected runs page to link to the run")
	}
	if !strings.Contains(body, "data-refresh") {
		t.Error("expected a pending run to trigger auto refresh")
	}
}

func TestRunList_EmptyShowsMessage(t *testing.T) {
	h := pages.NewPageHandlers(newTestManager(), nil, types.DefaultScanOptions())

	rec := httptest.NewRecorder()
	h.RunList(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))

	if !strings.Contains(rec.Body.String(), "No runs yet") {
		t.Error("expected runs page to contain 'No runs yet'")
	}
}

func TestRunDetail_Returns200WithRunInfo(t *testing.T) {
	mgr := newTestManager()
	h := pages.NewPageHandlers(mgr, nil, types.DefaultScanOptions())

	job, err := mgr.Create([]string{"example.com", "10.0.0.1"}, types.DefaultScanOptions())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := serve(h.RunDetail, "/runs/{id}", "/runs/"+job.ID)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{job.ID, "example.com, 10.0.0.1", "pending", "No targets finished yet"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected run detail to contain %q", want)
		}
	}
}

func TestRunDetail_RendersRecords(t *testing.T) {
	mgr := newTestManager()
	h := pages.NewPageHandlers(mgr, nil, types.DefaultScanOptions())

	job, err := mgr.Create([]string{"example.com"}, types.DefaultScanOptions())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r := types.NewScanRecord("example.com")
	_ = r.Set(types.StagePortScan, types.Success(types.StagePortScan, "80/tcp open http"))
	_ = r.Set(types.StageSMB, types.Failure(types.StageSMB, "timeout", ""))
	_ = r.AddCommand(types.CommandOutput{Command: "whois example.com", Result: types.Success(types.StageExtraCommand, "registrar")})
	r.Advice = types.AdviceDisabled
	r.Finalize(time.Now())
	if _, err := job.Report.Append(r); err != nil {
		t.Fatalf("append: %v", err)
	}

	rec := serve(h.RunDetail, "/runs/{id}", "/runs/"+job.ID)

	body := rec.Body.String()
	for _, want := range []string{"80/tcp open http", "timeout", "whois example.com", types.AdviceDisabled} {
		if !strings.Contains(body, want) {
			t.Errorf("expected run detail to contain %q", want)
		}
	}
}

func TestRunDetail_Returns404ForUnknownID(t *testing.T) {
	h := pages.NewPageHandlers(newTestManager(), nil, types.DefaultScanOptions())

	rec := serve(h.RunDetail, "/runs/{id}", "/runs/nonexistent")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Run not found") {
		t.Error("expected response to contain not found message")
	}
}

func TestHistory_WithoutStore(t *testing.T) {
	h := pages.NewPageHandlers(newTestManager(), nil, types.DefaultScanOptions())

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/history", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not configured") {
		t.Error("expected history page to report missing storage")
	}
}

func TestHistoryAndRecord(t *testing.T) {
	st := newTestStore(t)
	h := pages.NewPageHandlers(newTestManager(), st, types.DefaultScanOptions())

	r := types.NewScanRecord("stored.example.com")
	r.Advice = types.AdviceUnavailable
	r.Finalize(time.Now())
	if err := st.Persist(context.Background(), "run-1", r); err != nil {
		t.Fatalf("persist: %v", err)
	}

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	if !strings.Contains(rec.Body.String(), "stored.example.com") {
		t.Fatal("expected history page to list the stored record")
	}

	rows, err := st.List(context.Background(), store.ListOptions{})
	if err != nil || len(rows) != 1 {
		t.Fatalf("list: %v (%d rows)", err, len(rows))
	}

	rec = serve(h.Record, "/history/{id}", fmt.Sprintf("/history/%d", rows[0].ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), types.AdviceUnavailable) {
		t.Error("expected record page to show advice")
	}

	rec = serve(h.Record, "/history/{id}", "/history/999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}
