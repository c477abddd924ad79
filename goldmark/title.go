// Package goldmark extracts metadata from mirrored markdown using the
// goldmark CommonMark parser.
package goldmark

import (
	"strings"

	"github.com/fwojciec/docmirror"
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Ensure TitleExtractor implements docmirror.TitleExtractor.
var _ docmirror.TitleExtractor = (*TitleExtractor)(nil)

// TitleExtractor returns the text of the first heading in a document.
// Headings inside code blocks are not headings and are skipped by the parser.
type TitleExtractor struct {
	md goldmark.Markdown
}

// NewTitleExtractor creates a new TitleExtractor.
func NewTitleExtractor() *TitleExtractor {
	return &TitleExtractor{md: goldmark.New()}
}

// Title returns the plain text of the first ATX or setext heading, or "".
func (e *TitleExtractor) Title(content string) string {
	source := []byte(content)
	root := e.md.Parser().Parse(text.NewReader(source))

	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok {
			title = plainText(h, source)
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	return title
}

// plainText concatenates the inline text below n, dropping emphasis,
// link and code markup.
func plainText(n gmast.Node, source []byte) string {
	var b strings.Builder
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *gmast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(t.Value)
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
