package model

import (
	"path/filepath"
	"strings"
)

// SupportedImageExts lists the file extensions the image pipeline accepts.
var SupportedImageExts = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"}

// ImageItem is one image discovered in the source folder. LocalPath,
// Metadata, Caption and RemoteURL are filled in stage by stage.
type ImageItem struct {
	ID          string
	Name        string
	DownloadURL string
	LocalPath   string
	Metadata    Metadata
	Caption     string
	RemoteURL   string
}

// Metadata is the descriptive text embedded in an image file.
type Metadata struct {
	Title   string
	Comment string
}

// IsSupportedImage reports whether name has one of SupportedImageExts.
func IsSupportedImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedImageExts {
		if ext == e {
			return true
		}
	}
	return false
}
