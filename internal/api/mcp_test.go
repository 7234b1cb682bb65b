package api

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/susi/internal/storage"
	"github.com/kalambet/susi/internal/trigger"
)

func newTestMCPDeps(t *testing.T) (Deps, *storage.Store, *fakeRunner) {
	t.Helper()
	store := setupStore(t)
	runner := &fakeRunner{}
	return Deps{Store: store, Runner: runner}, store, runner
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_RunCycle(t *testing.T) {
	deps, _, runner := newTestMCPDeps(t)
	result, err := mcpRunCycle(deps)(context.Background(), makeCallToolRequest("run_cycle", map[string]interface{}{
		"workflow": "images",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	var run RunView
	if err := json.Unmarshal([]byte(toolText(t, result)), &run); err != nil {
		t.Fatal(err)
	}
	if run.Workflow != "images" || len(runner.started) != 1 {
		t.Errorf("run = %+v, started = %v", run, runner.started)
	}
}

func TestMCPTool_RunCycle_Busy(t *testing.T) {
	deps, _, _ := newTestMCPDeps(t)
	deps.Runner = &fakeRunner{err: trigger.ErrBusy}
	result, _ := mcpRunCycle(deps)(context.Background(), makeCallToolRequest("run_cycle", map[string]interface{}{
		"workflow": "content",
	}))
	if !result.IsError {
		t.Fatal("expected tool error while busy")
	}
}

func TestMCPTool_RunCycle_MissingWorkflow(t *testing.T) {
	deps, _, _ := newTestMCPDeps(t)
	result, _ := mcpRunCycle(deps)(context.Background(), makeCallToolRequest("run_cycle", map[string]interface{}{}))
	if !result.IsError {
		t.Fatal("expected tool error")
	}
}

func TestMCPTool_ListRuns(t *testing.T) {
	deps, store, _ := newTestMCPDeps(t)
	for i := 0; i < 3; i++ {
		run := storage.CycleRun{ID: string(rune('a' + i)), Workflow: "content", Trigger: "polling", Status: storage.RunRunning, StartedAt: time.Now().Add(time.Duration(i) * time.Second)}
		if err := store.StartRun(run); err != nil {
			t.Fatal(err)
		}
	}
	result, _ := mcpListRuns(deps)(context.Background(), makeCallToolRequest("list_runs", map[string]interface{}{
		"limit": float64(2),
	}))
	var runs []RunView
	if err := json.Unmarshal([]byte(toolText(t, result)), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "c" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestMCPTool_ListSeenAndNotifications(t *testing.T) {
	deps, store, _ := newTestMCPDeps(t)
	store.MarkImageSeen(storage.SeenImage{ID: "x", Name: "x.png", CompletedAt: time.Now()})
	store.SaveNotification(storage.Notification{ID: "n", Kind: "success", Subject: "ok", Transport: "gmail", Delivered: true, CreatedAt: time.Now()})

	result, _ := mcpListSeen(deps)(context.Background(), makeCallToolRequest("list_seen_images", nil))
	var seen []SeenView
	json.Unmarshal([]byte(toolText(t, result)), &seen)
	if len(seen) != 1 || seen[0].ID != "x" {
		t.Errorf("seen = %+v", seen)
	}

	result, _ = mcpListNotifications(deps)(context.Background(), makeCallToolRequest("list_notifications", nil))
	var ns []NotificationView
	json.Unmarshal([]byte(toolText(t, result)), &ns)
	if len(ns) != 1 || !ns[0].Delivered {
		t.Errorf("notifications = %+v", ns)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps, _, _ := newTestMCPDeps(t)
	list := mcpListRuns(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := list(context.Background(), makeCallToolRequest("list_runs", nil)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	deps, _, _ := newTestMCPDeps(t)
	if NewMCPServer(deps) == nil {
		t.Fatal("nil server")
	}
}
