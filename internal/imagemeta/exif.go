// Package imagemeta reads the descriptive EXIF fields of an image and renders
// them into a caption.
package imagemeta

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"unicode/utf16"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// xpCommentTag is the Windows XPComment tag in IFD0, stored as UTF-16LE bytes.
const xpCommentTag = 0x9C9C

// Reader extracts metadata from image files.
type Reader struct{}

// Read returns the ImageDescription as the title and XPComment as the
// comment. Files without EXIF data yield empty metadata, not an error.
func (Reader) Read(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return Metadata{}, nil
	}
	var md Metadata
	if tag, err := x.Get(exif.ImageDescription); err == nil {
		if s, err := tag.StringVal(); err == nil {
			md.Title = strings.TrimRight(s, "\x00")
		}
	}
	if x.Tiff != nil && len(x.Tiff.Dirs) > 0 {
		md.Comment = xpComment(x.Tiff.Dirs[0])
	}
	return md, nil
}

func xpComment(dir *tiff.Dir) string {
	for _, tag := range dir.Tags {
		if tag.Id == xpCommentTag {
			return DecodeUTF16LE(tag.Val)
		}
	}
	return ""
}

// DecodeUTF16LE decodes little-endian UTF-16 bytes and strips trailing NULs.
func DecodeUTF16LE(b []byte) string {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return strings.TrimRight(string(utf16.Decode(u)), "\x00")
}
