// Package workflow runs the content and image pipelines. Each row or image
// goes through a fixed sequence of stages; a failing stage is contained to the
// row or image it belongs to.
package workflow

import (
	"context"

	"github.com/kalambet/susi/internal/model"
)

// Sheet is the tabular content plan.
type Sheet interface {
	FetchUnprocessedRows(ctx context.Context) ([]model.Row, error)
	WriteCell(ctx context.Context, rowIndex int, column, value string) error
	MarkProcessed(ctx context.Context, rowIndex int) error
}

// NewsSource finds articles relevant to a topic and audience. An empty result
// is not an error.
type NewsSource interface {
	Search(ctx context.Context, topic, audience string) ([]model.Article, error)
}

// PostWriter generates post text. Implementations may return empty text.
type PostWriter interface {
	InstagramPost(ctx context.Context, topic, audience string, articles []model.Article) (string, error)
	LinkedInPost(ctx context.Context, topic, audience string, articles []model.Article) (string, error)
}

// Notifier delivers outcome notifications. Delivery problems are handled
// inside the notifier and never reach the caller.
type Notifier interface {
	Success(ctx context.Context, subject, body string)
	Failure(ctx context.Context, subject, body string)
}

// Drive is the cloud folder images are discovered in and archived to.
type Drive interface {
	ListImages(ctx context.Context, folder string) ([]model.ImageItem, error)
	Download(ctx context.Context, item model.ImageItem) (string, error)
	MoveToProcessed(ctx context.Context, item model.ImageItem, folder string) error
}

// MetadataReader extracts descriptive text embedded in an image file.
type MetadataReader interface {
	Read(path string) (model.Metadata, error)
}

// CaptionRenderer turns image metadata into a post caption.
type CaptionRenderer interface {
	Render(meta model.Metadata) (string, error)
}

// Uploader stores a local file in bucket and returns its public URL. An
// empty objectName means the file's base name. An empty URL with a nil error
// is treated as a failed upload.
type Uploader interface {
	Upload(ctx context.Context, localPath, bucket, objectName string) (string, error)
}

// Poster publishes an image with a caption. false means the post was not
// published.
type Poster interface {
	Post(ctx context.Context, imageURL, caption string) (bool, error)
}

// KnownIDs is the set of images already completed in this run.
type KnownIDs interface {
	Has(id string) bool
	Add(id string) error
}

// Report counts what one pass did.
type Report struct {
	Items     int
	Succeeded int
	Failed    int
	Skipped   int
}
