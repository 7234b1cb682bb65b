// Package api exposes run history and manual cycle triggers over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/susi/internal/storage"
	"github.com/kalambet/susi/internal/trigger"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// Runner starts manual pipeline passes.
type Runner interface {
	Start(ctx context.Context, workflow string) (storage.CycleRun, error)
}

// Store is the read side of the local database.
type Store interface {
	ListRuns(workflow string, limit int) ([]storage.CycleRun, error)
	GetRun(id string) (storage.CycleRun, error)
	ListSeenImages(limit int) ([]storage.SeenImage, error)
	ListNotifications(limit int) ([]storage.Notification, error)
}

// Deps holds what the handlers need.
type Deps struct {
	Store   Store
	Runner  Runner
	Token   string
	Version string
	// Context bounds passes started over the API. Nil means
	// context.Background().
	Context context.Context
}

func (d Deps) baseContext() context.Context {
	if d.Context == nil {
		return context.Background()
	}
	return d.Context
}

// RunView is the JSON form of a cycle run.
type RunView struct {
	ID         string     `json:"id"`
	Workflow   string     `json:"workflow"`
	Trigger    string     `json:"trigger"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Items      int        `json:"items"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	Error      string     `json:"error,omitempty"`
}

func viewRun(r storage.CycleRun) RunView {
	v := RunView{
		ID:        r.ID,
		Workflow:  r.Workflow,
		Trigger:   r.Trigger,
		Status:    r.Status,
		StartedAt: r.StartedAt,
		Items:     r.Items,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Skipped:   r.Skipped,
		Error:     r.Error,
	}
	if !r.FinishedAt.IsZero() {
		f := r.FinishedAt
		v.FinishedAt = &f
	}
	return v
}

// SeenView is the JSON form of a completed image.
type SeenView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RemoteURL   string    `json:"remote_url,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// NotificationView is the JSON form of a delivery attempt.
type NotificationView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Transport string    `json:"transport"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewHandler builds the status API router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/runs", handleListRuns(deps))
		r.Get("/runs/{id}", handleGetRun(deps))
		r.Get("/seen", handleListSeen(deps))
		r.Get("/notifications", handleListNotifications(deps))
		r.Post("/cycles/{workflow}", handleStartCycle(deps))
	})
	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": deps.Version})
	}
}

func handleListRuns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		runs, err := deps.Store.ListRuns(r.URL.Query().Get("workflow"), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing runs: %v", err)
			return
		}
		out := make([]RunView, 0, len(runs))
		for _, run := range runs {
			out = append(out, viewRun(run))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := deps.Store.GetRun(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "run not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading run: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, viewRun(run))
	}
}

func handleListSeen(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		imgs, err := deps.Store.ListSeenImages(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing seen images: %v", err)
			return
		}
		out := make([]SeenView, 0, len(imgs))
		for _, img := range imgs {
			out = append(out, SeenView(img))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleListNotifications(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		ns, err := deps.Store.ListNotifications(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing notifications: %v", err)
			return
		}
		out := make([]NotificationView, 0, len(ns))
		for _, n := range ns {
			out = append(out, NotificationView(n))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleStartCycle(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Runner == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "no pipeline runner attached")
			return
		}
		run, err := deps.Runner.Start(deps.baseContext(), chi.URLParam(r, "workflow"))
		switch {
		case errors.Is(err, trigger.ErrUnknownWorkflow):
			httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
		case errors.Is(err, trigger.ErrBusy):
			httpError(w, http.StatusConflict, "conflict_error", "%v", err)
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "starting cycle: %v", err)
		default:
			writeJSON(w, http.StatusAccepted, viewRun(run))
		}
	}
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return min(n, maxLimit), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
