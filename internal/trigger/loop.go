// Package trigger decides when the pipelines run: a fixed polling interval or
// weekly calendar slots. At most one pipeline pass runs at a time, whether it
// was started by the loop or on demand.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/susi/internal/storage"
	"github.com/kalambet/susi/internal/workflow"
)

// ErrBusy is returned by on-demand runs while another pass is in progress.
var ErrBusy = errors.New("a pipeline pass is already running")

// ErrUnknownWorkflow is returned by Start for a name other than content or images.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// Trigger sources recorded with every run.
const (
	SourcePolling  = "polling"
	SourceSchedule = "schedule"
	SourceManual   = "manual"
)

// ContentCycle runs one content pass.
type ContentCycle interface {
	Run(ctx context.Context) (workflow.Report, error)
}

// ImageCycle runs one image pass. known may be nil.
type ImageCycle interface {
	Run(ctx context.Context, known workflow.KnownIDs) (workflow.Report, error)
}

// KeepAliver refreshes a long-lived credential.
type KeepAliver interface {
	KeepAlive(ctx context.Context)
}

// Ledger records cycle runs.
type Ledger interface {
	StartRun(run storage.CycleRun) error
	FinishRun(run storage.CycleRun) error
}

// Loop owns the pipelines and serializes every pass through one slot.
type Loop struct {
	content   ContentCycle
	images    ImageCycle
	keepAlive KeepAliver
	ledger    Ledger
	known     workflow.KnownIDs
	logger    *slog.Logger

	sem chan struct{}
	now func() time.Time
}

// Option configures a Loop.
type Option func(*Loop)

// WithKeepAlive refreshes k before every polling cycle.
func WithKeepAlive(k KeepAliver) Option { return func(l *Loop) { l.keepAlive = k } }

// WithLedger records every pass in led.
func WithLedger(led Ledger) Option { return func(l *Loop) { l.ledger = led } }

// WithKnownIDs sets the completed-image set used in polling mode.
func WithKnownIDs(k workflow.KnownIDs) Option { return func(l *Loop) { l.known = k } }

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option { return func(l *Loop) { l.logger = logger } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(l *Loop) { l.now = now } }

// New creates a Loop.
func New(content ContentCycle, images ImageCycle, opts ...Option) *Loop {
	l := &Loop{
		content: content,
		images:  images,
		logger:  slog.Default(),
		sem:     make(chan struct{}, 1),
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// KnownIDs returns the completed-image set given with WithKnownIDs.
func (l *Loop) KnownIDs() workflow.KnownIDs { return l.known }

// TryContent runs a content pass now, or returns ErrBusy.
func (l *Loop) TryContent(ctx context.Context) (storage.CycleRun, error) {
	if !l.tryAcquire() {
		return storage.CycleRun{}, ErrBusy
	}
	defer l.release()
	return l.runContent(ctx, SourceManual)
}

// TryImages runs an image pass now, or returns ErrBusy. known may be nil.
func (l *Loop) TryImages(ctx context.Context, known workflow.KnownIDs) (storage.CycleRun, error) {
	if !l.tryAcquire() {
		return storage.CycleRun{}, ErrBusy
	}
	defer l.release()
	return l.runImages(ctx, SourceManual, known)
}

// Start begins a manual pass of wf ("content" or "images") in the
// background and returns the run as recorded at its start. It returns ErrBusy
// while another pass holds the slot. ctx bounds the background pass. Image
// passes use the known set given with WithKnownIDs.
func (l *Loop) Start(ctx context.Context, wf string) (storage.CycleRun, error) {
	var pass func(context.Context) (workflow.Report, error)
	switch wf {
	case "content":
		pass = func(ctx context.Context) (workflow.Report, error) { return l.content.Run(ctx) }
	case "images":
		pass = func(ctx context.Context) (workflow.Report, error) { return l.images.Run(ctx, l.known) }
	default:
		return storage.CycleRun{}, fmt.Errorf("%w: %q", ErrUnknownWorkflow, wf)
	}
	if !l.tryAcquire() {
		return storage.CycleRun{}, ErrBusy
	}
	run := l.begin(wf, SourceManual)
	go func() {
		defer l.release()
		l.finish(ctx, run, pass)
	}()
	return run, nil
}

// Polling runs keep-alive, the image pass with the known set and the content
// pass, then waits interval, until ctx is done.
func (l *Loop) Polling(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	l.logger.Info("trigger loop started", "mode", SourcePolling, "interval", interval)
	for {
		if err := l.acquire(ctx); err != nil {
			return err
		}
		if l.keepAlive != nil {
			l.keepAlive.KeepAlive(ctx)
		}
		l.runImages(ctx, SourcePolling, l.known)
		l.runContent(ctx, SourcePolling)
		l.release()

		l.logger.Info("polling cycle complete", "next_in", interval)
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Schedule runs the image pass in imageSlot and the content pass in
// contentSlot, checking which is due every check interval. Image passes in
// this mode get no known set.
func (l *Loop) Schedule(ctx context.Context, imageSlot, contentSlot Slot, check time.Duration) error {
	if check <= 0 {
		check = 30 * time.Second
	}
	jobs := l.scheduleJobs(imageSlot, contentSlot)

	ticker := time.NewTicker(check)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.runDue(ctx, jobs); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) scheduleJobs(imageSlot, contentSlot Slot) []*job {
	jobs := []*job{
		{name: "images", slot: imageSlot, run: func(ctx context.Context) {
			l.runImages(ctx, SourceSchedule, nil)
		}},
		{name: "content", slot: contentSlot, run: func(ctx context.Context) {
			l.runContent(ctx, SourceSchedule)
		}},
	}
	start := l.now()
	for _, j := range jobs {
		j.next = j.slot.Next(start)
		l.logger.Info("scheduled workflow", "workflow", j.name, "slot", j.slot.String(), "next", j.next)
	}
	return jobs
}

type job struct {
	name string
	slot Slot
	next time.Time
	run  func(ctx context.Context)
}

// runDue runs every job whose next occurrence has passed and moves it to the
// following slot.
func (l *Loop) runDue(ctx context.Context, jobs []*job) error {
	for _, j := range jobs {
		now := l.now()
		if now.Before(j.next) {
			continue
		}
		if err := l.acquire(ctx); err != nil {
			return err
		}
		j.run(ctx)
		l.release()
		j.next = j.slot.Next(l.now())
		l.logger.Info("next scheduled run", "workflow", j.name, "next", j.next)
	}
	return nil
}

func (l *Loop) runContent(ctx context.Context, source string) (storage.CycleRun, error) {
	return l.record(ctx, "content", source, func(ctx context.Context) (workflow.Report, error) {
		return l.content.Run(ctx)
	})
}

func (l *Loop) runImages(ctx context.Context, source string, known workflow.KnownIDs) (storage.CycleRun, error) {
	return l.record(ctx, "images", source, func(ctx context.Context) (workflow.Report, error) {
		return l.images.Run(ctx, known)
	})
}

// record runs one pass and writes it to the ledger. A pass-level error is
// logged and stored with the run; the loop keeps going.
func (l *Loop) record(ctx context.Context, wf, source string, pass func(context.Context) (workflow.Report, error)) (storage.CycleRun, error) {
	return l.finish(ctx, l.begin(wf, source), pass)
}

func (l *Loop) begin(wf, source string) storage.CycleRun {
	run := storage.CycleRun{
		ID:        uuid.NewString(),
		Workflow:  wf,
		Trigger:   source,
		Status:    storage.RunRunning,
		StartedAt: l.now(),
	}
	if l.ledger != nil {
		if err := l.ledger.StartRun(run); err != nil {
			l.logger.Warn("recording run start failed", "run_id", run.ID, "error", err)
		}
	}
	return run
}

func (l *Loop) finish(ctx context.Context, run storage.CycleRun, pass func(context.Context) (workflow.Report, error)) (storage.CycleRun, error) {
	log := l.logger.With("run_id", run.ID, "workflow", run.Workflow, "trigger", run.Trigger)

	rep, err := l.safePass(ctx, pass)
	run.FinishedAt = l.now()
	run.Items, run.Succeeded, run.Failed, run.Skipped = rep.Items, rep.Succeeded, rep.Failed, rep.Skipped
	run.Status = storage.RunCompleted
	if err != nil {
		run.Status = storage.RunFailed
		run.Error = err.Error()
		log.Error("cycle failed", "error", err)
	} else {
		log.Info("cycle finished", "items", run.Items, "succeeded", run.Succeeded, "failed", run.Failed, "skipped", run.Skipped)
	}

	if l.ledger != nil {
		if ferr := l.ledger.FinishRun(run); ferr != nil {
			log.Warn("recording run finish failed", "error", ferr)
		}
	}
	return run, err
}

func (l *Loop) safePass(ctx context.Context, pass func(context.Context) (workflow.Report, error)) (rep workflow.Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cycle panicked: %v", p)
		}
	}()
	return pass(ctx)
}

func (l *Loop) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) tryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l *Loop) release() { <-l.sem }
