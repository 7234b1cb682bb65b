package imagemeta

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRender(t *testing.T) {
	tmpl, err := NewTemplate("{title}: {comment}")
	if err != nil {
		t.Fatal(err)
	}
	got, err := tmpl.Render(Metadata{Title: "  Sunset ", Comment: "Lake\nConstance\t at  dusk"})
	if err != nil {
		t.Fatal(err)
	}
	if want := "Sunset: Lake Constance at dusk"; got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRender_EscapedBraces(t *testing.T) {
	tmpl, err := NewTemplate("{{{title}}} #susi")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := tmpl.Render(Metadata{Title: "x"})
	if got != "{x} #susi" {
		t.Errorf("Render = %q", got)
	}
}

func TestNewTemplate_Errors(t *testing.T) {
	if _, err := NewTemplate("{title} {location}"); !errors.Is(err, ErrUnknownPlaceholder) {
		t.Errorf("error = %v, want ErrUnknownPlaceholder", err)
	}
	for _, bad := range []string{"{title", "title}"} {
		if _, err := NewTemplate(bad); err == nil {
			t.Errorf("NewTemplate(%q) succeeded, want error", bad)
		}
	}
}

func TestDecodeUTF16LE(t *testing.T) {
	// "Hi ü" + NUL terminator.
	b := []byte{'H', 0, 'i', 0, ' ', 0, 0xFC, 0, 0, 0}
	if got := DecodeUTF16LE(b); got != "Hi ü" {
		t.Errorf("DecodeUTF16LE = %q", got)
	}
	if got := DecodeUTF16LE([]byte{'A', 0, 'B'}); got != "A" {
		t.Errorf("odd length = %q", got)
	}
}

func TestRead_NoExif(t *testing.T) {
	p := filepath.Join(t.TempDir(), "plain.png")
	if err := os.WriteFile(p, []byte("\x89PNG\r\n\x1a\nnot really"), 0o644); err != nil {
		t.Fatal(err)
	}
	md, err := Reader{}.Read(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md != (Metadata{}) {
		t.Errorf("metadata = %+v, want empty", md)
	}
}

func TestRead_MissingFile(t *testing.T) {
	if _, err := (Reader{}).Read(filepath.Join(t.TempDir(), "nope.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}
