package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kalambet/susi/internal/config"
	"github.com/kalambet/susi/internal/drive"
	"github.com/kalambet/susi/internal/genai"
	"github.com/kalambet/susi/internal/graph"
	"github.com/kalambet/susi/internal/imagemeta"
	"github.com/kalambet/susi/internal/news"
	"github.com/kalambet/susi/internal/notify"
	"github.com/kalambet/susi/internal/objectstore"
	"github.com/kalambet/susi/internal/retry"
	"github.com/kalambet/susi/internal/social"
	"github.com/kalambet/susi/internal/storage"
	"github.com/kalambet/susi/internal/tracker"
	"github.com/kalambet/susi/internal/trigger"
	"github.com/kalambet/susi/internal/workbook"
	"github.com/kalambet/susi/internal/workflow"
)

// app is the wired pipeline set shared by the daemon and one-shot commands.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.Store
	tokens *graph.TokenSource
	known  *tracker.Durable
	loop   *trigger.Loop
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// newLogger writes to stderr and, when log.file is set, to a rotated file.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cfg.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{Tries: cfg.Tries, Delay: cfg.Delay, Backoff: cfg.Backoff}
}

// newApp opens storage and builds every collaborator for workflows. Close
// must be called when done.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, workflows ...string) (*app, error) {
	if err := cfg.Validate(workflows...); err != nil {
		return nil, err
	}
	policy := retryPolicy(cfg.Retry)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: store}

	a.tokens, err = graph.NewTokenSource(ctx, graph.TokenConfig{
		ClientID:     cfg.OneDrive.ClientID,
		ClientSecret: cfg.OneDrive.ClientSecret,
		TenantID:     cfg.OneDrive.TenantID,
		RefreshToken: cfg.OneDrive.RefreshToken,
		TokenFile:    cfg.OneDrive.TokenFile,
	}, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("onedrive auth: %w", err)
	}
	gc := graph.NewClient(cfg.OneDrive.GraphRoot, a.tokens.HTTPClient(ctx))

	a.known, err = tracker.Load(store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading seen images: %w", err)
	}

	notifier := notify.FromConfig(ctx, cfg.Email, logger, notify.WithPolicy(policy), notify.WithRecorder(store))

	var content trigger.ContentCycle = noContent{}
	if wants(workflows, config.WorkflowContent) {
		content = workflow.NewContentRunner(
			workbook.New(gc, cfg.Workbook.Path, cfg.Workbook.Sheet),
			news.FromConfig(cfg.News, logger),
			genai.FromConfig(cfg.GenAI),
			notifier,
			logger,
		)
	}

	var images trigger.ImageCycle = noImages{}
	if wants(workflows, config.WorkflowImages) {
		images, err = a.imageRunner(ctx, gc, notifier, policy)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	a.loop = trigger.New(content, images,
		trigger.WithKeepAlive(a.tokens),
		trigger.WithLedger(store),
		trigger.WithKnownIDs(a.known),
		trigger.WithLogger(logger),
	)
	return a, nil
}

func (a *app) imageRunner(ctx context.Context, gc *graph.Client, notifier workflow.Notifier, policy retry.Policy) (*workflow.ImageRunner, error) {
	cfg := a.cfg
	tmpl, err := imagemeta.NewTemplate(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("caption template: %w", err)
	}
	uploader, err := objectstore.New(ctx, objectstore.Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	poster, err := social.New(cfg, policy, a.logger)
	if err != nil {
		return nil, err
	}

	downloadDir := cfg.OneDrive.LocalDownloadDir
	if !filepath.IsAbs(downloadDir) {
		downloadDir = filepath.Join(cfg.Storage.DataDir, downloadDir)
	}
	return workflow.NewImageRunner(workflow.ImageConfig{
		SourceFolder:    cfg.OneDrive.Folder,
		ProcessedFolder: cfg.OneDrive.ProcessedFolder,
		Bucket:          cfg.AWS.S3Bucket,
		Retry:           policy,
	}, drive.New(gc, downloadDir, a.logger), imagemeta.Reader{}, tmpl, uploader, poster, notifier, a.logger), nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func wants(workflows []string, wf string) bool {
	for _, w := range workflows {
		if w == wf {
			return true
		}
	}
	return false
}

// errNotBuilt is returned by a pipeline the current command did not build.
func errNotBuilt(wf string) error {
	return fmt.Errorf("%s workflow is not configured for this command", wf)
}

type noContent struct{}

func (noContent) Run(context.Context) (workflow.Report, error) {
	return workflow.Report{}, errNotBuilt(config.WorkflowContent)
}

type noImages struct{}

func (noImages) Run(context.Context, workflow.KnownIDs) (workflow.Report, error) {
	return workflow.Report{}, errNotBuilt(config.WorkflowImages)
}
