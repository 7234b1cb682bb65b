package news

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/net/html"
)

// Cleaner turns feed markup into prompt-friendly text.
type Cleaner struct {
	converter *md.Converter
}

func NewCleaner() *Cleaner {
	return &Cleaner{converter: md.NewConverter("", true, nil)}
}

// Title returns the visible text of s with whitespace collapsed.
func (c *Cleaner) Title(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return collapse(b.String())
}

// Description converts HTML to Markdown. Plain text passes through.
func (c *Cleaner) Description(s string) string {
	if !strings.Contains(s, "<") {
		return collapse(s)
	}
	out, err := c.converter.ConvertString(s)
	if err != nil {
		return c.Title(s)
	}
	return strings.TrimSpace(out)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
