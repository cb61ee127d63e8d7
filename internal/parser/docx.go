package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/casegest/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Paragraphs styled as headings open a new
// section; body paragraphs accumulate under the nearest heading.
type DOCXParser struct{}

func (p *DOCXParser) Parse(_ context.Context, r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}

	doc, err := parseDocx(data)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	tree := &doctree.DocTree{
		Title: strings.TrimSuffix(filename, ".docx"),
	}

	type section struct {
		node  *doctree.DocNode
		level int
	}
	root := &doctree.DocNode{}
	open := []section{{node: root}}
	var body []string

	flush := func() {
		if len(body) == 0 {
			return
		}
		top := open[len(open)-1].node
		text := strings.Join(body, "\n\n")
		if top.Text != "" {
			text = top.Text + "\n\n" + text
		}
		top.Text = text
		body = body[:0]
	}

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}

		level := docxHeadingLevel(para)
		if level == 0 {
			body = append(body, text)
			continue
		}

		flush()
		for len(open) > 1 && open[len(open)-1].level >= level {
			open = open[:len(open)-1]
		}
		node := &doctree.DocNode{Title: text}
		parent := open[len(open)-1].node
		parent.Children = append(parent.Children, node)
		open = append(open, section{node: node, level: level})
	}
	flush()

	tree.Children = root.Children
	if root.Text != "" {
		tree.Children = append([]*doctree.DocNode{{Text: root.Text}}, tree.Children...)
	}
	return tree, nil
}

// parseDocx guards against panics inside go-docx on truncated archives.
func parseDocx(data []byte) (doc *docx.Docx, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed docx: %v", r)
		}
	}()
	return docx.Parse(bytes.NewReader(data), int64(len(data)))
}

// docxHeadingLevel reads "Heading3", "heading 3" and "Title" styles.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if style == "title" {
		return 1
	}
	rest, ok := strings.CutPrefix(style, "heading")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > 9 {
		return 0
	}
	return n
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
