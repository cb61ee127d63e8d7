package parser

import (
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/dgallion1/casegest/internal/doctree"
)

var (
	// ErrUnsupportedFormat is returned when the declared type is not PDF or
	// DOCX, or when the content does not match the declared type.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtractionFailure is returned for malformed files and for files that
	// yield no extractable text.
	ErrExtractionFailure = errors.New("extraction failure")
)

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, filename string) (*doctree.DocTree, error)
}

// SourceType identifies a supported document format.
type SourceType string

const (
	SourcePDF  SourceType = "pdf"
	SourceDOCX SourceType = "docx"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// MimeType returns the canonical MIME type for the source type.
func (t SourceType) MimeType() string {
	switch t {
	case SourcePDF:
		return MimePDF
	case SourceDOCX:
		return MimeDOCX
	}
	return ""
}

// SourceTypeForMIME maps a declared MIME type (parameters allowed) to a
// supported source type.
func SourceTypeForMIME(declared string) (SourceType, bool) {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(declared))
	}
	switch mediaType {
	case MimePDF:
		return SourcePDF, true
	case MimeDOCX:
		return SourceDOCX, true
	}
	return "", false
}

// MimeTypeForFilename guesses the declared MIME type from a file extension.
// Used by callers that read files from disk and have no declared type.
func MimeTypeForFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDOCX
	}
	return "application/octet-stream"
}
