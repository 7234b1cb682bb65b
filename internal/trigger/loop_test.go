package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/susi/internal/storage"
	"github.com/kalambet/susi/internal/tracker"
	"github.com/kalambet/susi/internal/workflow"
)

// --- mocks ---

type mockContent struct {
	mu    sync.Mutex
	calls int
	rep   workflow.Report
	err   error
	fn    func(ctx context.Context)
	log   *[]string
}

func (m *mockContent) Run(ctx context.Context) (workflow.Report, error) {
	m.mu.Lock()
	m.calls++
	if m.log != nil {
		*m.log = append(*m.log, "content")
	}
	m.mu.Unlock()
	if m.fn != nil {
		m.fn(ctx)
	}
	return m.rep, m.err
}

type mockImages struct {
	calls int
	known []workflow.KnownIDs
	log   *[]string
}

func (m *mockImages) Run(_ context.Context, known workflow.KnownIDs) (workflow.Report, error) {
	m.calls++
	m.known = append(m.known, known)
	if m.log != nil {
		*m.log = append(*m.log, "images")
	}
	return workflow.Report{Items: 1, Succeeded: 1}, nil
}

type mockKeepAlive struct{ log *[]string }

func (m mockKeepAlive) KeepAlive(context.Context) { *m.log = append(*m.log, "keepalive") }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPolling_OrderAndKnownSet(t *testing.T) {
	var order []string
	ctx, cancel := context.WithCancel(context.Background())
	content := &mockContent{log: &order, fn: func(context.Context) { cancel() }}
	images := &mockImages{log: &order}
	known := tracker.NewMemory()

	l := New(content, images,
		WithKeepAlive(mockKeepAlive{log: &order}),
		WithKnownIDs(known),
		WithLogger(quietLogger()))

	err := l.Polling(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Polling error = %v, want context.Canceled", err)
	}
	want := []string{"keepalive", "images", "content"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
	if images.known[0] != workflow.KnownIDs(known) {
		t.Error("polling mode must pass the session known set")
	}
}

func TestPolling_CycleErrorDoesNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	content := &mockContent{err: errors.New("sheet unavailable")}
	content.fn = func(context.Context) {
		if content.calls == 2 {
			cancel()
		}
	}
	store := openStore(t)
	l := New(content, &mockImages{}, WithLedger(store), WithLogger(quietLogger()))

	if err := l.Polling(ctx, time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Fatalf("Polling error = %v", err)
	}
	if content.calls != 2 {
		t.Errorf("content calls = %d, want 2", content.calls)
	}
	runs, err := store.ListRuns("content", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Status != storage.RunFailed || runs[0].Error != "sheet unavailable" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestTryContent_RecordsRun(t *testing.T) {
	store := openStore(t)
	content := &mockContent{rep: workflow.Report{Items: 3, Succeeded: 2, Skipped: 1}}
	l := New(content, &mockImages{}, WithLedger(store), WithLogger(quietLogger()))

	run, err := l.TryContent(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if run.Trigger != SourceManual || run.Status != storage.RunCompleted || run.Items != 3 {
		t.Errorf("run = %+v", run)
	}
	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Succeeded != 2 || got.Skipped != 1 || got.Workflow != "content" {
		t.Errorf("stored run = %+v", got)
	}
}

func TestTry_BusyWhileAnotherPassRuns(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	content := &mockContent{fn: func(context.Context) {
		close(started)
		<-unblock
	}}
	images := &mockImages{}
	l := New(content, images, WithLogger(quietLogger()))

	done := make(chan error, 1)
	go func() {
		_, err := l.TryContent(context.Background())
		done <- err
	}()
	<-started

	if _, err := l.TryImages(context.Background(), nil); !errors.Is(err, ErrBusy) {
		t.Errorf("TryImages error = %v, want ErrBusy", err)
	}
	if _, err := l.TryContent(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("TryContent error = %v, want ErrBusy", err)
	}
	close(unblock)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if images.calls != 0 {
		t.Error("image pass ran while content pass held the slot")
	}
	if _, err := l.TryImages(context.Background(), nil); err != nil {
		t.Errorf("TryImages after release = %v", err)
	}
}

func TestStart_RunsInBackgroundAndRecords(t *testing.T) {
	store := openStore(t)
	unblock := make(chan struct{})
	content := &mockContent{
		rep: workflow.Report{Items: 2, Succeeded: 2},
		fn:  func(context.Context) { <-unblock },
	}
	l := New(content, &mockImages{}, WithLedger(store), WithLogger(quietLogger()))

	run, err := l.Start(context.Background(), "content")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != storage.RunRunning || run.Trigger != SourceManual {
		t.Errorf("started run = %+v", run)
	}
	if _, err := l.Start(context.Background(), "images"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start error = %v, want ErrBusy", err)
	}
	close(unblock)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := store.GetRun(run.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == storage.RunCompleted {
			if got.Items != 2 {
				t.Errorf("finished run = %+v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run still %q", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStart_UsesKnownSetForImages(t *testing.T) {
	known := tracker.NewMemory("a")
	images := &mockImages{}
	l := New(&mockContent{}, images, WithKnownIDs(known), WithLogger(quietLogger()))

	if _, err := l.Start(context.Background(), "images"); err != nil {
		t.Fatal(err)
	}
	// The slot frees once the background pass is done.
	if err := l.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	l.release()
	if images.calls != 1 || images.known[0] != workflow.KnownIDs(known) {
		t.Errorf("images calls = %d known = %v", images.calls, images.known)
	}
}

func TestStart_UnknownWorkflow(t *testing.T) {
	l := New(&mockContent{}, &mockImages{}, WithLogger(quietLogger()))
	if _, err := l.Start(context.Background(), "stories"); !errors.Is(err, ErrUnknownWorkflow) {
		t.Errorf("err = %v, want ErrUnknownWorkflow", err)
	}
	if !l.tryAcquire() {
		t.Error("slot left held after rejected workflow")
	}
}

func TestSafePass_RecoversPanic(t *testing.T) {
	content := &mockContent{fn: func(context.Context) { panic("boom") }}
	l := New(content, &mockImages{}, WithLogger(quietLogger()))
	run, err := l.TryContent(context.Background())
	if err == nil || run.Status != storage.RunFailed {
		t.Errorf("run = %+v, err = %v", run, err)
	}
}

func TestRunDue_FiresOncePerSlot(t *testing.T) {
	imageSlot, err := ParseSlot("Tuesday", "09:00")
	if err != nil {
		t.Fatal(err)
	}
	contentSlot, err := ParseSlot("Thursday", "09:00")
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local) // Monday
	clock := func() time.Time { return now }
	content := &mockContent{}
	images := &mockImages{}
	l := New(content, images, WithClock(clock), WithKnownIDs(tracker.NewMemory()), WithLogger(quietLogger()))
	jobs := l.scheduleJobs(imageSlot, contentSlot)
	ctx := context.Background()

	if err := l.runDue(ctx, jobs); err != nil {
		t.Fatal(err)
	}
	if images.calls != 0 || content.calls != 0 {
		t.Fatalf("nothing should be due on Monday")
	}

	now = time.Date(2026, 10, 20, 9, 0, 10, 0, time.Local) // Tuesday, just past 09:00
	l.runDue(ctx, jobs)
	now = now.Add(30 * time.Second)
	l.runDue(ctx, jobs)
	if images.calls != 1 || content.calls != 0 {
		t.Errorf("images=%d content=%d, want 1 0", images.calls, content.calls)
	}
	if images.known[0] != nil {
		t.Error("schedule mode must not pass a known set")
	}

	now = time.Date(2026, 10, 22, 9, 0, 5, 0, time.Local) // Thursday
	l.runDue(ctx, jobs)
	if content.calls != 1 || images.calls != 1 {
		t.Errorf("images=%d content=%d, want 1 1", images.calls, content.calls)
	}
	if !jobs[0].next.After(now) || jobs[0].next.Weekday() != time.Tuesday {
		t.Errorf("next image run = %v", jobs[0].next)
	}
}

func TestSchedule_StopsOnCancel(t *testing.T) {
	s, _ := ParseSlot("Monday", "09:00")
	l := New(&mockContent{}, &mockImages{}, WithLogger(quietLogger()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Schedule(ctx, s, s, 5*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Schedule error = %v", err)
	}
}
