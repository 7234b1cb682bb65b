package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/susi/internal/retry"
)

// InstagramConfig configures the Instagram Graph API backend.
type InstagramConfig struct {
	GraphURL    string
	APIVersion  string
	UserID      string
	AccessToken string
	// PollInterval and MaxWait bound the wait for media processing.
	PollInterval time.Duration
	MaxWait      time.Duration
	Retry        retry.Policy
}

// Instagram posts through the container create, status poll and publish flow.
type Instagram struct {
	cfg        InstagramConfig
	base       string
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewInstagram(cfg InstagramConfig, httpClient *http.Client, logger *slog.Logger) *Instagram {
	if cfg.GraphURL == "" {
		cfg.GraphURL = "https://graph.facebook.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v19.0"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Instagram{
		cfg:        cfg,
		base:       strings.TrimRight(cfg.GraphURL, "/") + "/" + cfg.APIVersion,
		httpClient: httpClient,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// Post creates a media container, waits until Instagram has processed it and
// publishes it. Rejections by the API return false without retrying.
// Transport errors are retried while preparing the container; the publish
// call is made once so a dropped reply cannot publish the image twice.
func (ig *Instagram) Post(ctx context.Context, imageURL, caption string) (bool, error) {
	prepare := retry.Wrap("instagram_prepare", ig.cfg.Retry, ig.logger, func(ctx context.Context) (string, error) {
		return ig.prepare(ctx, imageURL, caption)
	})
	creationID, err := prepare(ctx)
	if err == nil && creationID != "" {
		err = ig.publish(ctx, creationID)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		ig.logger.Error("instagram rejected post", "op", apiErr.Op, "status", apiErr.Status, "body", apiErr.Body)
		return false, nil
	}
	if err != nil || creationID == "" {
		return false, err
	}
	ig.logger.Info("posted image to instagram", "url", imageURL)
	return true, nil
}

// prepare creates the media container and waits for it to become
// publishable. An empty id with a nil error means Instagram gave up on it.
func (ig *Instagram) prepare(ctx context.Context, imageURL, caption string) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	err := ig.postForm(ctx, "create media", ig.base+"/"+ig.cfg.UserID+"/media", url.Values{
		"image_url":    {imageURL},
		"caption":      {caption},
		"access_token": {ig.cfg.AccessToken},
	}, &created)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		ig.logger.Error("instagram returned no creation id")
		return "", nil
	}

	if !ig.waitReady(ctx, created.ID) {
		ig.logger.Error("instagram media not ready for publishing", "creation_id", created.ID)
		return "", nil
	}
	return created.ID, nil
}

func (ig *Instagram) publish(ctx context.Context, creationID string) error {
	return ig.postForm(ctx, "publish media", ig.base+"/"+ig.cfg.UserID+"/media_publish", url.Values{
		"creation_id":  {creationID},
		"access_token": {ig.cfg.AccessToken},
	}, nil)
}

// waitReady polls the container status until FINISHED, ERROR or MaxWait.
func (ig *Instagram) waitReady(ctx context.Context, creationID string) bool {
	q := url.Values{"fields": {"status_code"}, "access_token": {ig.cfg.AccessToken}}
	statusURL := ig.base + "/" + creationID + "?" + q.Encode()
	for waited := time.Duration(0); waited < ig.cfg.MaxWait; waited += ig.cfg.PollInterval {
		status, err := ig.status(ctx, statusURL)
		switch {
		case err != nil:
			ig.logger.Warn("polling instagram media status failed", "error", err)
		case status == "FINISHED":
			return true
		case status == "ERROR":
			ig.logger.Error("instagram media processing failed", "creation_id", creationID)
			return false
		}
		if err := ig.sleep(ctx, ig.cfg.PollInterval); err != nil {
			return false
		}
	}
	ig.logger.Error("timed out waiting for instagram media", "creation_id", creationID, "max_wait", ig.cfg.MaxWait)
	return false
}

func (ig *Instagram) status(ctx context.Context, statusURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := ig.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var body struct {
		StatusCode string `json:"status_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding status: %w", err)
	}
	return body.StatusCode, nil
}

func (ig *Instagram) postForm(ctx context.Context, op, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return retry.Permanent(fmt.Errorf("%s: %w", op, err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := ig.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return retry.Permanent(&APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
