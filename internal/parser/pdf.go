package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/casegest/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the OCR service when configured,
// then the Go library, then pdftotext if allowed.
type PDFParser struct {
	OCR               *OCRClient
	FallbackPdftotext bool

	log *slog.Logger
}

func (p *PDFParser) Parse(ctx context.Context, r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	if p.OCR != nil {
		tree, err := p.parseOCR(ctx, data, filename)
		if err == nil {
			return tree, nil
		}
		if p.log != nil {
			p.log.Warn("ocr extraction failed, using native parser", "filename", filename, "error", err)
		}
	}

	// ledongthuc/pdf and pdftotext both want a file on disk.
	tmp, err := os.CreateTemp("", "casegest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	text, err := extractPDFText(tmpPath)
	if (err != nil || strings.TrimSpace(text) == "") && p.FallbackPdftotext {
		if alt, altErr := extractPdftotext(ctx, tmpPath); altErr == nil {
			text, err = alt, nil
		} else if err == nil {
			err = altErr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	tree := &doctree.DocTree{
		Title: strings.TrimSuffix(filename, ".pdf"),
	}
	for i, page := range splitPages(text) {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			Text: page,
			Page: i + 1,
		})
	}
	return tree, nil
}

func (p *PDFParser) parseOCR(ctx context.Context, data []byte, filename string) (*doctree.DocTree, error) {
	md, err := p.OCR.Markdown(ctx, data, filename)
	if err != nil {
		return nil, err
	}
	tree, err := (&MarkdownParser{}).Parse(ctx, strings.NewReader(md), filename)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(tree.PlainText()) == "" {
		return nil, fmt.Errorf("ocr service returned no text")
	}
	tree.Title = strings.TrimSuffix(filename, ".pdf")
	return tree, nil
}

func extractPDFText(path string) (text string, err error) {
	// The library panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f") // Form feed as page separator.
		}
		buf.WriteString(pageText)
	}
	return buf.String(), nil
}

func extractPdftotext(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

func splitPages(text string) []string {
	return strings.Split(text, "\f")
}
