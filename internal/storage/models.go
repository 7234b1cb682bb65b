package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// SeenImage is an image that went through publish and archive.
type SeenImage struct {
	ID          string
	Name        string
	RemoteURL   string
	CompletedAt time.Time
}

// CycleRun is one pass of a pipeline runner.
type CycleRun struct {
	ID         string
	Workflow   string // "content" or "images"
	Trigger    string // "polling", "schedule", "manual"
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Items      int
	Succeeded  int
	Failed     int
	Skipped    int
	Error      string
}

// Notification records one delivery attempt outcome of the notification gateway.
type Notification struct {
	ID        string
	Kind      string // "success" or "failure"
	Subject   string
	Transport string
	Delivered bool
	Error     string
	CreatedAt time.Time
}
