package imagemeta

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/susi/internal/model"
)

// Metadata is the descriptive text read from an image.
type Metadata = model.Metadata

// ErrUnknownPlaceholder is returned when a template names a field that does
// not exist.
var ErrUnknownPlaceholder = errors.New("unknown template placeholder")

// Template renders captions such as "{title}: {comment}". Literal braces are
// written as {{ and }}.
type Template struct {
	text string
}

// NewTemplate parses text and rejects unknown placeholders up front.
func NewTemplate(text string) (*Template, error) {
	t := &Template{text: text}
	if _, err := t.Render(Metadata{}); err != nil {
		return nil, err
	}
	return t, nil
}

// Render substitutes the trimmed title and the comment with all whitespace
// runs collapsed to single spaces.
func (t *Template) Render(md Metadata) (string, error) {
	fields := map[string]string{
		"title":   strings.TrimSpace(md.Title),
		"comment": strings.Join(strings.Fields(md.Comment), " "),
	}
	var b strings.Builder
	s := t.text
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unclosed '{' at offset %d in template", i)
			}
			name := s[i+1 : i+1+end]
			v, ok := fields[name]
			if !ok {
				return "", fmt.Errorf("%w: {%s}", ErrUnknownPlaceholder, name)
			}
			b.WriteString(v)
			i += end + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("single '}' at offset %d in template", i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
