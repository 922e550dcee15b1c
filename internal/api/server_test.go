package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eargollo/docqueue/internal/config"
	internaldb "github.com/eargollo/docqueue/internal/db"
	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/queue"
	"github.com/eargollo/docqueue/internal/report"
	"github.com/eargollo/docqueue/internal/scan"
	"github.com/eargollo/docqueue/internal/scheduler"
)

type fixture struct {
	srv   *httptest.Server
	root  string
	queue *queue.Memory
	rep   report.Report
	mgr   *scan.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := internaldb.OpenAndMigrate(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	root := t.TempDir()
	for _, p := range []string{"a.txt", "sub/b.txt"} {
		full := filepath.Join(root, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Default()
	cfg.ScanPaths = []string{root}
	factory, err := document.NewFactory(document.Options{})
	if err != nil {
		t.Fatal(err)
	}
	q := queue.NewMemory("test:queue", 0)
	rep := report.NewSQLite(db, "test:report")
	mgr := scan.NewManager(db, factory, q, nil, cfg.ScanPaths, cfg.ScanOptions())
	sched := scheduler.New(context.Background(), mgr)

	srv := httptest.NewServer(Router(Deps{
		DB:        db,
		Config:    cfg,
		Manager:   mgr,
		Scheduler: sched,
		Queue:     q,
		Report:    rep,
		Factory:   factory,
		Version:   "test",
	}))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, root: root, queue: q, rep: rep, mgr: mgr}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d\nbody: %s", want, resp.StatusCode, body)
	}
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

func (f *fixture) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := f.mgr.Wait(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestScanLifecycle(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/scans", "")
	requireStatus(t, resp, http.StatusAccepted)
	var started struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	decode(t, resp, &started)
	if started.ID <= 0 || started.Status != "running" {
		t.Fatalf("start = %+v", started)
	}
	f.waitIdle(t)

	resp = f.do(t, http.MethodGet, "/api/scans", "")
	requireStatus(t, resp, http.StatusOK)
	var list struct {
		Items []scan.Record `json:"items"`
		Total int           `json:"total"`
	}
	decode(t, resp, &list)
	if list.Total != 1 || list.Items[0].FilesQueued != 2 || list.Items[0].Status != scan.StatusCompleted {
		t.Errorf("list = %+v", list)
	}

	resp = f.do(t, http.MethodGet, "/api/scans/1", "")
	requireStatus(t, resp, http.StatusOK)
	resp = f.do(t, http.MethodGet, "/api/scans/999", "")
	requireStatus(t, resp, http.StatusNotFound)
	resp = f.do(t, http.MethodGet, "/api/scans/abc", "")
	requireStatus(t, resp, http.StatusBadRequest)
	resp = f.do(t, http.MethodDelete, "/api/scans/current", "")
	requireStatus(t, resp, http.StatusNotFound)

	resp = f.do(t, http.MethodGet, "/api/queue", "")
	requireStatus(t, resp, http.StatusOK)
	var qi struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	decode(t, resp, &qi)
	if qi.Name != "test:queue" || qi.Size != 2 {
		t.Errorf("queue = %+v", qi)
	}

	resp = f.do(t, http.MethodGet, "/api/status", "")
	requireStatus(t, resp, http.StatusOK)
	var st struct {
		Version           string `json:"version"`
		ActiveScan        any    `json:"active_scan"`
		LastCompletedScan *struct {
			FilesQueued int64 `json:"files_queued"`
		} `json:"last_completed_scan"`
	}
	decode(t, resp, &st)
	if st.Version != "test" || st.ActiveScan != nil || st.LastCompletedScan == nil || st.LastCompletedScan.FilesQueued != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestPollAndRecord(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.root, "a.txt")
	doc, err := document.NewFactory(document.Options{})
	if err != nil {
		t.Fatal(err)
	}
	want, _ := doc.Create(path)
	if err := f.queue.Put(context.Background(), want); err != nil {
		t.Fatal(err)
	}

	resp := f.do(t, http.MethodPost, "/api/queue/poll", "")
	requireStatus(t, resp, http.StatusOK)
	var got struct {
		document.Document
		Fields map[string]string `json:"fields"`
	}
	decode(t, resp, &got)
	if got.Document != want {
		t.Errorf("polled %+v, want %+v", got.Document, want)
	}
	if got.Fields["extract_id"] != want.ID || got.Fields["extract_base_type"] != "document" {
		t.Errorf("polled fields = %v", got.Fields)
	}
	resp = f.do(t, http.MethodPost, "/api/queue/poll?wait=10ms", "")
	requireStatus(t, resp, http.StatusNoContent)
	resp = f.do(t, http.MethodPost, "/api/queue/poll?wait=soon", "")
	requireStatus(t, resp, http.StatusBadRequest)

	body, _ := json.Marshal(map[string]any{"path": path, "status": "failure_not_parsed"})
	resp = f.do(t, http.MethodPut, "/api/report", string(body))
	requireStatus(t, resp, http.StatusOK)
	other := filepath.Join(f.root, "sub", "b.txt")
	body, _ = json.Marshal(map[string]any{"path": other, "status": 0})
	resp = f.do(t, http.MethodPut, "/api/report", string(body))
	requireStatus(t, resp, http.StatusOK)

	status, ok, err := f.rep.Get(context.Background(), want)
	if err != nil || !ok || status != report.StatusNotParsed {
		t.Errorf("report.Get = %v, %v, %v", status, ok, err)
	}

	resp = f.do(t, http.MethodGet, "/api/report?match=not_parsed", "")
	requireStatus(t, resp, http.StatusOK)
	var filtered map[string]int
	decode(t, resp, &filtered)
	if len(filtered) != 1 || filtered[path] != 3 {
		t.Errorf("filtered report = %v", filtered)
	}

	resp = f.do(t, http.MethodGet, "/api/report", "")
	requireStatus(t, resp, http.StatusOK)
	var all map[string]int
	decode(t, resp, &all)
	if len(all) != 2 || all[other] != 0 {
		t.Errorf("report = %v", all)
	}

	for _, bad := range []string{`{"path": ""}`, `{"path": "/x"}`, `{"path": "/x", "status": "maybe"}`, `not json`} {
		resp = f.do(t, http.MethodPut, "/api/report", bad)
		requireStatus(t, resp, http.StatusBadRequest)
	}
	resp = f.do(t, http.MethodGet, "/api/report?match=bogus", "")
	requireStatus(t, resp, http.StatusBadRequest)
}

func TestConfigPatch(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPatch, "/api/config", `{"schedule": "0 4 * * *", "scan_paused": true}`)
	requireStatus(t, resp, http.StatusOK)
	var cfg config.Config
	decode(t, resp, &cfg)
	if cfg.Schedule != "0 4 * * *" || !cfg.ScanPaused {
		t.Errorf("config = %+v", cfg)
	}

	resp = f.do(t, http.MethodPatch, "/api/config", `{"schedule": "whenever"}`)
	requireStatus(t, resp, http.StatusBadRequest)

	resp = f.do(t, http.MethodPatch, "/api/config", `{"scan_paths": []}`)
	requireStatus(t, resp, http.StatusOK)
	resp = f.do(t, http.MethodPost, "/api/scans", "")
	requireStatus(t, resp, http.StatusUnprocessableEntity)

	resp = f.do(t, http.MethodGet, "/api/fields", "")
	requireStatus(t, resp, http.StatusOK)
	var names map[string]string
	decode(t, resp, &names)
	if names["id"] != "extract_id" {
		t.Errorf("fields = %v", names)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/metrics", "")
	requireStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("docqueue_scans_total")) && !bytes.Contains(body, []byte("go_goroutines")) {
		t.Errorf("unexpected metrics body: %.200s", body)
	}
}
