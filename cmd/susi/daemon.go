package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/susi/internal/api"
	"github.com/kalambet/susi/internal/config"
	"github.com/kalambet/susi/internal/trigger"
)

// loopRunner picks the trigger mode from config and runs it until ctx ends.
func loopRunner(cfg config.Config, loop *trigger.Loop) (func(context.Context) error, error) {
	switch strings.ToLower(cfg.Trigger.Mode) {
	case "", trigger.SourcePolling:
		return func(ctx context.Context) error {
			return loop.Polling(ctx, cfg.Trigger.PollInterval)
		}, nil
	case trigger.SourceSchedule:
		imageSlot, err := trigger.ParseSlot(cfg.Schedule.ImageDay, cfg.Schedule.ImageTime)
		if err != nil {
			return nil, fmt.Errorf("image schedule: %w", err)
		}
		contentSlot, err := trigger.ParseSlot(cfg.Schedule.InstagramDay, cfg.Schedule.InstagramTime)
		if err != nil {
			return nil, fmt.Errorf("content schedule: %w", err)
		}
		return func(ctx context.Context) error {
			return loop.Schedule(ctx, imageSlot, contentSlot, cfg.Trigger.CheckInterval)
		}, nil
	default:
		return nil, fmt.Errorf("unknown trigger mode %q (want polling or schedule)", cfg.Trigger.Mode)
	}
}

func runDaemon(mode string, withMCP bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if mode != "" {
		cfg.Trigger.Mode = mode
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("susi starting", "version", version, "mode", cfg.Trigger.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, config.WorkflowContent, config.WorkflowImages)
	if err != nil {
		return err
	}
	defer a.Close()
	logger.Info("loaded seen images", "count", a.known.Len())

	runLoop, err := loopRunner(cfg, a.loop)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Store:   a.store,
		Runner:  a.loop,
		Token:   cfg.Server.Token,
		Version: version,
		Context: ctx,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(runLoop(gctx))
	})

	if cfg.Server.Enabled {
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewHandler(deps),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(_ net.Listener) context.Context {
				return gctx
			},
		}
		g.Go(func() error {
			logger.Info("status API listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status API: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if withMCP {
		stdio := server.NewStdioServer(api.NewMCPServer(deps))
		g.Go(func() error {
			logger.Info("MCP server started (stdio transport)")
			return ignoreCanceled(stdio.Listen(gctx, os.Stdin, os.Stdout))
		})
	}

	err = g.Wait()
	logger.Info("susi stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
