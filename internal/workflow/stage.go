package workflow

import (
	"errors"
	"fmt"
)

// Stage names.
const (
	StageNews         = "news"
	StageInstagramGen = "instagram_generation"
	StageInstagramPut = "instagram_write"
	StageLinkedInGen  = "linkedin_generation"
	StageLinkedInPut  = "linkedin_write"
	StageMarkDone     = "mark_processed"
	StageDownload     = "download"
	StageCaption      = "metadata_caption"
	StageUpload       = "upload"
	StagePublish      = "publish"
	StageArchive      = "archive"
)

var (
	// ErrEmptyURL is the failure recorded when an upload yields no URL.
	ErrEmptyURL = errors.New("upload returned no URL")
	// ErrNotPublished is the failure recorded when the poster reports false.
	ErrNotPublished = errors.New("post was not published")
)

// Outcome is the result of one stage. A nil Err means the stage succeeded.
type Outcome struct {
	Stage string
	Err   error
}

// OK reports whether the stage succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

func (o Outcome) Error() string {
	if o.Err == nil {
		return o.Stage + ": ok"
	}
	return fmt.Sprintf("%s: %v", o.Stage, o.Err)
}

func run(stage string, fn func() error) Outcome {
	return Outcome{Stage: stage, Err: fn()}
}
