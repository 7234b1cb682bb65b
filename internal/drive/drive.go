// Package drive lists, downloads and archives images in a OneDrive folder.
package drive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kalambet/susi/internal/graph"
	"github.com/kalambet/susi/internal/model"
)

// Drive is the signed-in user's OneDrive.
type Drive struct {
	client      *graph.Client
	downloadDir string
	logger      *slog.Logger
}

// New creates a Drive that downloads into downloadDir.
func New(client *graph.Client, downloadDir string, logger *slog.Logger) *Drive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Drive{client: client, downloadDir: downloadDir, logger: logger}
}

type driveItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DownloadURL string    `json:"@microsoft.graph.downloadUrl"`
	File        *struct{} `json:"file"`
}

type childrenPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// ListImages returns the supported image files directly inside folder, in the
// order Graph lists them.
func (d *Drive) ListImages(ctx context.Context, folder string) ([]model.ImageItem, error) {
	next := fmt.Sprintf("me/drive/root:%s:/children", graph.PathSegment(folder))
	var items []model.ImageItem
	for next != "" {
		var page childrenPage
		if err := d.client.GetJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("listing %s: %w", folder, err)
		}
		for _, it := range page.Value {
			if it.File == nil || !model.IsSupportedImage(it.Name) {
				continue
			}
			items = append(items, model.ImageItem{ID: it.ID, Name: it.Name, DownloadURL: it.DownloadURL})
		}
		next = page.NextLink
	}
	d.logger.Debug("listed images", "folder", folder, "count", len(items))
	return items, nil
}

// Download saves item into the download directory and returns the local path.
func (d *Drive) Download(ctx context.Context, item model.ImageItem) (string, error) {
	src := item.DownloadURL
	if src == "" {
		var meta driveItem
		if err := d.client.GetJSON(ctx, "me/drive/items/"+item.ID, &meta); err != nil {
			return "", fmt.Errorf("resolving download URL for %s: %w", item.Name, err)
		}
		src = meta.DownloadURL
		if src == "" {
			return "", fmt.Errorf("no download URL for %s", item.Name)
		}
	}
	if err := os.MkdirAll(d.downloadDir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	local := filepath.Join(d.downloadDir, filepath.Base(item.Name))
	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", local, err)
	}
	if err := d.client.Fetch(ctx, src, f); err != nil {
		f.Close()
		os.Remove(local)
		return "", fmt.Errorf("downloading %s: %w", item.Name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", local, err)
	}
	d.logger.Info("downloaded image", "name", item.Name, "path", local)
	return local, nil
}

// MoveToProcessed moves item into folder.
func (d *Drive) MoveToProcessed(ctx context.Context, item model.ImageItem, folder string) error {
	body := map[string]any{
		"parentReference": map[string]string{"path": "/drive/root:" + folder},
	}
	if err := d.client.PatchJSON(ctx, "me/drive/items/"+item.ID, body, nil); err != nil {
		return fmt.Errorf("moving %s to %s: %w", item.Name, folder, err)
	}
	d.logger.Info("moved image", "name", item.Name, "folder", folder)
	return nil
}
