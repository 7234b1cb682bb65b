package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/susi/internal/api"
	"github.com/kalambet/susi/internal/config"
	"github.com/kalambet/susi/internal/storage"
	"github.com/kalambet/susi/internal/trigger"
	"github.com/kalambet/susi/internal/workflow"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"message":"a pipeline pass is already running","type":"conflict_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

func useClient(t *testing.T, c *apiClient) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return c, nil }
	t.Cleanup(func() { newAPIClient = old })
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	return rootCmd.Execute()
}

func TestTriggerCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /cycles/images": `{"id":"run-9","workflow":"images","trigger":"manual","status":"running"}`,
	})
	useClient(t, ts.client())

	if err := execute(t, "trigger", "images"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != http.MethodPost || r.Path != "/cycles/images" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q", r.Auth)
	}
}

func TestTriggerCommand_Busy(t *testing.T) {
	ts := newTestServer(t, nil)
	useClient(t, ts.client())

	err := execute(t, "trigger", "content")
	if err == nil || !strings.Contains(err.Error(), "409") {
		t.Fatalf("err = %v, want 409", err)
	}
}

func TestTriggerCommand_NeedsWorkflow(t *testing.T) {
	if err := execute(t, "trigger"); err == nil {
		t.Fatal("expected error for missing workflow")
	}
}

func TestStatusCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok","version":"1.2.3"}`,
		"GET /runs":   `[{"id":"r1","workflow":"content","trigger":"polling","status":"failed","started_at":"2026-01-01T10:00:00Z","error":"workbook unreachable"}]`,
	})
	useClient(t, ts.client())

	if err := execute(t, "status", "--limit", "3"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(ts.requests) != 2 || ts.requests[1].Path != "/runs?limit=3" {
		t.Errorf("requests = %+v", ts.requests)
	}
}

func TestClientOmitsAuthWithoutToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /health": `{"status":"ok"}`})
	c := ts.client()
	c.token = ""

	resp, err := c.get(context.Background(), "/health")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]string
	if err := decodeJSON(resp, &body); err != nil {
		t.Fatal(err)
	}
	if ts.requests[0].Auth != "" {
		t.Errorf("auth header sent: %q", ts.requests[0].Auth)
	}
}

func TestSeenCommand(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkImageSeen(storage.SeenImage{ID: "item-1", Name: "beach.jpg", CompletedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	t.Setenv("SUSI_STORAGE_DATA_DIR", dir)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("storage:\n  data_dir: "+dir+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := execute(t, "seen", "--config", cfgPath); err != nil {
		t.Fatalf("seen: %v", err)
	}
}

func TestConfigShow_MissingExplicitFile(t *testing.T) {
	err := execute(t, "config", "show", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoopRunner(t *testing.T) {
	loop := trigger.New(noContent{}, noImages{})

	cfg := config.Config{}
	cfg.Trigger.Mode = "polling"
	if _, err := loopRunner(cfg, loop); err != nil {
		t.Errorf("polling: %v", err)
	}

	cfg.Trigger.Mode = "schedule"
	cfg.Schedule = config.ScheduleConfig{ImageDay: "Tuesday", ImageTime: "09:00", InstagramDay: "Thursday", InstagramTime: "18:30"}
	if _, err := loopRunner(cfg, loop); err != nil {
		t.Errorf("schedule: %v", err)
	}

	cfg.Schedule.InstagramDay = "Someday"
	if _, err := loopRunner(cfg, loop); err == nil {
		t.Error("expected error for unknown weekday")
	}

	cfg.Schedule.InstagramDay = "Thursday"
	cfg.Schedule.ImageTime = "25:00"
	if _, err := loopRunner(cfg, loop); err == nil {
		t.Error("expected error for invalid time")
	}

	cfg.Trigger.Mode = "cron"
	if _, err := loopRunner(cfg, loop); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestNotBuiltPipelines(t *testing.T) {
	if _, err := (noContent{}).Run(context.Background()); err == nil {
		t.Error("noContent should fail")
	}
	var known workflow.KnownIDs
	if _, err := (noImages{}).Run(context.Background(), known); err == nil {
		t.Error("noImages should fail")
	}
}

func TestRetryPolicy(t *testing.T) {
	p := retryPolicy(config.RetryConfig{Tries: 4, Delay: time.Second, Backoff: 3})
	want := []time.Duration{time.Second, 3 * time.Second, 9 * time.Second}
	got := p.Delays()
	if len(got) != len(want) {
		t.Fatalf("delays = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNewLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "susi.log")
	logger := newLogger(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1, MaxBackups: 1})
	logger.Debug("hello from test")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log file = %q", data)
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorRed, "x"); got != "x" {
		t.Errorf("colorize with noColor=true = %q", got)
	}
	noColor = false
	if got := colorize(colorRed, "x"); !strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=false = %q", got)
	}
}

func TestRunViewDecodes(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /runs": `[{"id":"r1","workflow":"images","status":"completed","items":2,"succeeded":2}]`,
	})
	resp, err := ts.client().get(context.Background(), "/runs")
	if err != nil {
		t.Fatal(err)
	}
	var runs []api.RunView
	if err := decodeJSON(resp, &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Succeeded != 2 {
		t.Errorf("runs = %+v", runs)
	}
}
