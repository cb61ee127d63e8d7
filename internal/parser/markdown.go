package parser

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/dgallion1/casegest/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// MarkdownParser reads the markdown produced by the OCR service. Headings
// start flat sections; everything else is collected as section text.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(_ context.Context, r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	tree := &doctree.DocTree{
		Title: strings.TrimSuffix(strings.TrimSuffix(filename, ".md"), ".mmd"),
	}
	current := &doctree.DocNode{}
	var parts []string

	closeSection := func() {
		current.Text = strings.Join(parts, "\n\n")
		if current.Title != "" || current.Text != "" {
			tree.Children = append(tree.Children, current)
		}
		parts = nil
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			closeSection()
			current = &doctree.DocNode{Title: strings.TrimSpace(blockText(h, src))}
			continue
		}
		if t := blockText(n, src); t != "" {
			parts = append(parts, t)
		}
	}
	closeSection()

	return tree, nil
}

// blockText returns the visible text of a goldmark node, with raw HTML
// reduced to its text content.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		var raw bytes.Buffer
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			raw.Write(seg.Value(src))
		}
		if n.Kind() == ast.KindHTMLBlock {
			return stripHTML(raw.String())
		}
		if !n.HasChildren() {
			buf.Write(raw.Bytes())
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			buf.Write(node.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.RawHTML:
			// Inline tags such as <sup> carry no text of their own.
		default:
			if c.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(blockText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

// stripHTML keeps only text tokens, with entities decoded.
func stripHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var buf strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(buf.String())
		case html.StartTagToken, html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skip++
				} else if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip == 0 {
				buf.Write(z.Text())
			}
		}
	}
}
