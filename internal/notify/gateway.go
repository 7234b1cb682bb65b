// Package notify delivers success and failure notifications by email.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/susi/internal/config"
	"github.com/kalambet/susi/internal/retry"
	"github.com/kalambet/susi/internal/storage"
)

const (
	KindSuccess = "success"
	KindFailure = "failure"
)

// ErrNoTransport is logged when a gateway has nothing to send with.
var ErrNoTransport = errors.New("notify: no transport configured")

// Transport sends one message.
type Transport interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}

// Recorder keeps a ledger of delivery attempts.
type Recorder interface {
	SaveNotification(n storage.Notification) error
}

// Gateway tries its transports in order until one delivers. Failures are
// logged and never returned.
type Gateway struct {
	transports []Transport
	policy     retry.Policy
	recorder   Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRecorder records every transport outcome.
func WithRecorder(r Recorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

// WithPolicy sets the retry policy applied to each transport.
func WithPolicy(p retry.Policy) Option {
	return func(g *Gateway) { g.policy = p }
}

// New creates a Gateway over transports.
func New(logger *slog.Logger, transports []Transport, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		transports: transports,
		policy:     retry.DefaultPolicy(),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FromConfig builds the transport chain for cfg. The gmail provider falls
// back to SMTP.
func FromConfig(ctx context.Context, cfg config.EmailConfig, logger *slog.Logger, opts ...Option) *Gateway {
	smtpT := NewSMTP(cfg.SMTPServer, cfg.SMTPPort, cfg.Username, cfg.Password, cfg.Recipient)
	transports := []Transport{smtpT}
	if strings.EqualFold(cfg.Provider, "gmail") {
		gm := NewGmail(ctx, GmailConfig{
			ClientID:     cfg.GmailClientID,
			ClientSecret: cfg.GmailClientSecret,
			RefreshToken: cfg.GmailRefreshToken,
			From:         cfg.Username,
			To:           cfg.Recipient,
		})
		transports = []Transport{gm, smtpT}
	}
	return New(logger, transports, opts...)
}

func (g *Gateway) Success(ctx context.Context, subject, body string) {
	g.deliver(ctx, KindSuccess, subject, body)
}

func (g *Gateway) Failure(ctx context.Context, subject, body string) {
	g.deliver(ctx, KindFailure, subject, body)
}

// deliver reports whether any transport succeeded.
func (g *Gateway) deliver(ctx context.Context, kind, subject, body string) bool {
	if len(g.transports) == 0 {
		g.logger.Error("notification not sent", "kind", kind, "subject", subject, "error", ErrNoTransport)
		return false
	}
	for _, t := range g.transports {
		err := retry.Do(ctx, "notify."+t.Name(), g.policy, g.logger, func(ctx context.Context) error {
			return t.Send(ctx, subject, body)
		})
		g.record(kind, subject, t.Name(), err)
		if err == nil {
			g.logger.Info("notification sent", "kind", kind, "subject", subject, "transport", t.Name())
			return true
		}
		g.logger.Error("notification transport failed", "kind", kind, "subject", subject, "transport", t.Name(), "error", err)
	}
	g.logger.Error("notification not delivered by any transport", "kind", kind, "subject", subject)
	return false
}

func (g *Gateway) record(kind, subject, transport string, err error) {
	if g.recorder == nil {
		return
	}
	n := storage.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Subject:   subject,
		Transport: transport,
		Delivered: err == nil,
		CreatedAt: g.now().UTC(),
	}
	if err != nil {
		n.Error = err.Error()
	}
	if rerr := g.recorder.SaveNotification(n); rerr != nil {
		g.logger.Warn("recording notification failed", "subject", subject, "error", rerr)
	}
}
