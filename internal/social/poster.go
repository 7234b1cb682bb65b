// Package social publishes images to social platforms.
package social

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/susi/internal/config"
	"github.com/kalambet/susi/internal/retry"
)

// Poster publishes one image with a caption. It returns false when the
// platform did not publish the post.
type Poster interface {
	Post(ctx context.Context, imageURL, caption string) (bool, error)
}

// APIError is a non-success reply from a platform API.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// New selects the Poster configured in social.platform.
func New(cfg config.Config, policy retry.Policy, logger *slog.Logger) (Poster, error) {
	switch strings.ToLower(cfg.Social.Platform) {
	case "", "instagram":
		return NewInstagram(InstagramConfig{
			GraphURL:    cfg.Instagram.GraphURL,
			APIVersion:  cfg.Instagram.APIVersion,
			UserID:      cfg.Instagram.UserID,
			AccessToken: cfg.Instagram.AccessToken,
			Retry:       policy,
		}, &http.Client{Timeout: 30 * time.Second}, logger), nil
	case "dryrun", "dry-run":
		return NewDryRun(logger), nil
	default:
		return nil, fmt.Errorf("unknown social platform %q", cfg.Social.Platform)
	}
}

// DryRun logs what would be posted and reports success.
type DryRun struct {
	logger *slog.Logger
}

func NewDryRun(logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{logger: logger}
}

func (d *DryRun) Post(_ context.Context, imageURL, caption string) (bool, error) {
	d.logger.Info("dry run: would post image", "url", imageURL, "caption", caption)
	return true, nil
}
