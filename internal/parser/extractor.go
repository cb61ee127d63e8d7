package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/casegest/internal/doctree"
	"github.com/gabriel-vasile/mimetype"
)

// Blob is one uploaded file as handed over by the blob source.
type Blob struct {
	Data     []byte
	MimeType string
	Filename string
}

// Result is the plain text extracted from a Blob.
type Result struct {
	SourceType SourceType
	Text       string
	Tree       *doctree.DocTree
}

// Options configures the default parser set.
type Options struct {
	OCR               *OCRClient
	FallbackPdftotext bool
}

// Extractor turns document blobs into plain text.
type Extractor struct {
	parsers map[SourceType]Parser
	log     *slog.Logger
}

func NewExtractor(opts Options, log *slog.Logger) *Extractor {
	e := &Extractor{
		parsers: make(map[SourceType]Parser),
		log:     log,
	}
	e.Register(SourcePDF, &PDFParser{OCR: opts.OCR, FallbackPdftotext: opts.FallbackPdftotext, log: log})
	e.Register(SourceDOCX, &DOCXParser{})
	return e
}

// Register replaces the parser used for a source type.
func (e *Extractor) Register(t SourceType, p Parser) {
	e.parsers[t] = p
}

// Extract validates the declared type against the content and returns the
// document's plain text. Only a declared type other than PDF or DOCX is an
// unsupported format; empty, corrupt or mismatched content of a supported
// type is an extraction failure, as is empty text.
func (e *Extractor) Extract(ctx context.Context, b Blob) (*Result, error) {
	st, ok := SourceTypeForMIME(b.MimeType)
	if !ok {
		return nil, fmt.Errorf("%w: declared type %q", ErrUnsupportedFormat, b.MimeType)
	}
	if !contentMatches(b.Data, st) {
		detected := mimetype.Detect(b.Data)
		return nil, fmt.Errorf("%w: %s: declared %s but content is %s", ErrExtractionFailure, b.Filename, st.MimeType(), detected.String())
	}

	p, ok := e.parsers[st]
	if !ok {
		return nil, fmt.Errorf("%w: no parser for %s", ErrUnsupportedFormat, st)
	}

	tree, err := p.Parse(ctx, bytes.NewReader(b.Data), b.Filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExtractionFailure, b.Filename, err)
	}

	text := strings.TrimSpace(tree.PlainText())
	if text == "" {
		return nil, fmt.Errorf("%w: %s: no extractable text", ErrExtractionFailure, b.Filename)
	}

	if e.log != nil {
		e.log.Debug("extracted text", "filename", b.Filename, "source_type", st, "chars", len(text))
	}
	return &Result{SourceType: st, Text: text, Tree: tree}, nil
}

// contentMatches checks the sniffed type, or one of its ancestors, against the
// declared type. OOXML files are zip containers and may sniff as plain zip.
func contentMatches(data []byte, st SourceType) bool {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(st.MimeType()) {
			return true
		}
	}
	return st == SourceDOCX && detected.Is("application/zip")
}
