package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/kalambet/susi/internal/model"
	"github.com/kalambet/susi/internal/retry"
)

// Image notification subjects.
const (
	SubjectDownloadFailed  = "Susi OneDrive Download Failed"
	SubjectCaptionFailed   = "Susi Metadata/Caption Error"
	SubjectUploadFailed    = "Susi S3 Upload Failed"
	SubjectPostFailed      = "Susi Social Post Failed"
	SubjectArchiveFailed   = "Susi Archive Failed"
	SubjectPostCreated     = "Susi Post Created"
	SubjectImageUnexpected = "Susi Unexpected Error"
)

// ImageConfig names where images come from and go to.
type ImageConfig struct {
	SourceFolder    string
	ProcessedFolder string
	Bucket          string
	Retry           retry.Policy
}

// ImageRunner publishes images found in a cloud folder.
type ImageRunner struct {
	cfg      ImageConfig
	drive    Drive
	meta     MetadataReader
	captions CaptionRenderer
	uploader Uploader
	poster   Poster
	notify   Notifier
	logger   *slog.Logger
}

// NewImageRunner creates an ImageRunner. A nil logger uses slog.Default().
func NewImageRunner(cfg ImageConfig, drive Drive, meta MetadataReader, captions CaptionRenderer,
	uploader Uploader, poster Poster, notify Notifier, logger *slog.Logger) *ImageRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageRunner{
		cfg:      cfg,
		drive:    drive,
		meta:     meta,
		captions: captions,
		uploader: uploader,
		poster:   poster,
		notify:   notify,
		logger:   logger,
	}
}

// Run lists the source folder and processes every supported image not in
// known. known may be nil, in which case nothing is filtered and completed
// images are not remembered. The returned error is only set when the folder
// could not be listed.
func (r *ImageRunner) Run(ctx context.Context, known KnownIDs) (Report, error) {
	r.logger.Info("fetching images", "folder", r.cfg.SourceFolder)
	list := retry.Wrap("list_images", r.cfg.Retry, r.logger, func(ctx context.Context) ([]model.ImageItem, error) {
		return r.drive.ListImages(ctx, r.cfg.SourceFolder)
	})
	items, err := list(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing images: %w", err)
	}

	var pending []model.ImageItem
	for _, it := range items {
		if !model.IsSupportedImage(it.Name) {
			continue
		}
		if known != nil && known.Has(it.ID) {
			continue
		}
		pending = append(pending, it)
	}
	if len(pending) == 0 {
		r.logger.Info("no new images found")
		return Report{}, nil
	}

	rep := Report{Items: len(pending)}
	for _, it := range pending {
		if r.processImage(ctx, it, known) {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
	}
	r.logger.Info("image cycle finished", "images", rep.Items, "published", rep.Succeeded, "failed", rep.Failed)
	return rep, nil
}

func (r *ImageRunner) processImage(ctx context.Context, item model.ImageItem, known KnownIDs) (ok bool) {
	log := r.logger.With("image_id", item.ID, "name", item.Name)
	defer func() {
		if p := recover(); p != nil {
			stack := debug.Stack()
			log.Error("unexpected error processing image", "panic", p, "stack", string(stack))
			r.notify.Failure(ctx, SubjectImageUnexpected, fmt.Sprintf(
				"Unexpected error processing %s: %v\n\nStack:\n%s", item.Name, p, stack))
			ok = false
		}
	}()
	log.Info("processing image")

	download := retry.Wrap("download", r.cfg.Retry, log, func(ctx context.Context) (string, error) {
		return r.drive.Download(ctx, item)
	})
	out := run(StageDownload, func() error {
		var err error
		item.LocalPath, err = download(ctx)
		return err
	})
	if !out.OK() {
		return r.fail(ctx, log, out, SubjectDownloadFailed,
			fmt.Sprintf("Failed to download %s.\nError: %v", item.Name, out.Err))
	}
	log.Info("downloaded image", "path", item.LocalPath)

	out = run(StageCaption, func() error {
		md, err := r.meta.Read(item.LocalPath)
		if err != nil {
			return err
		}
		item.Metadata = md
		item.Caption, err = r.captions.Render(md)
		return err
	})
	if !out.OK() {
		return r.fail(ctx, log, out, SubjectCaptionFailed,
			fmt.Sprintf("Failed to extract metadata or generate caption for %s.\nError: %v", item.Name, out.Err))
	}
	log.Debug("generated caption", "caption", item.Caption)

	upload := retry.Wrap("upload", r.cfg.Retry, log, func(ctx context.Context) (string, error) {
		return r.uploader.Upload(ctx, item.LocalPath, r.cfg.Bucket, "")
	})
	out = run(StageUpload, func() error {
		url, err := upload(ctx)
		if err != nil {
			return err
		}
		if url == "" {
			return ErrEmptyURL
		}
		item.RemoteURL = url
		return nil
	})
	if !out.OK() {
		return r.fail(ctx, log, out, SubjectUploadFailed,
			fmt.Sprintf("Failed to upload %s to bucket %s.\nError: %v", item.LocalPath, r.cfg.Bucket, out.Err))
	}
	log.Info("uploaded image", "url", item.RemoteURL)

	out = run(StagePublish, func() error {
		published, err := r.poster.Post(ctx, item.RemoteURL, item.Caption)
		if err != nil {
			return err
		}
		if !published {
			return ErrNotPublished
		}
		return nil
	})
	if !out.OK() {
		return r.fail(ctx, log, out, SubjectPostFailed,
			fmt.Sprintf("Failed to post %s to social platform.\nError: %v", item.RemoteURL, out.Err))
	}
	log.Info("published image")

	out = run(StageArchive, func() error {
		return r.drive.MoveToProcessed(ctx, item, r.cfg.ProcessedFolder)
	})
	if !out.OK() {
		return r.fail(ctx, log, out, SubjectArchiveFailed,
			fmt.Sprintf("Posted %s but could not move it to %s.\nError: %v", item.Name, r.cfg.ProcessedFolder, out.Err))
	}
	if err := os.Remove(item.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("removing local copy failed", "path", item.LocalPath, "error", err)
	}

	r.notify.Success(ctx, SubjectPostCreated, fmt.Sprintf(
		"A post was successfully created for image: %s\n\nCaption:\n%s", item.Name, item.Caption))
	r.remember(log, item, known)
	return true
}

// imageRecorder is implemented by KnownIDs sets that keep more than the id.
type imageRecorder interface {
	Record(id, name, remoteURL string) error
}

func (r *ImageRunner) remember(log *slog.Logger, item model.ImageItem, known KnownIDs) {
	if known == nil {
		return
	}
	var err error
	if rec, ok := known.(imageRecorder); ok {
		err = rec.Record(item.ID, item.Name, item.RemoteURL)
	} else {
		err = known.Add(item.ID)
	}
	if err != nil {
		log.Warn("recording completed image failed", "error", err)
	}
}

func (r *ImageRunner) fail(ctx context.Context, log *slog.Logger, out Outcome, subject, body string) bool {
	log.Error("image stage failed", "stage", out.Stage, "error", out.Err)
	r.notify.Failure(ctx, subject, body)
	return false
}
