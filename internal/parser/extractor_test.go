package parser

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgallion1/casegest/internal/doctree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type stubParser struct {
	tree *doctree.DocTree
	err  error
}

func (s *stubParser) Parse(context.Context, io.Reader, string) (*doctree.DocTree, error) {
	return s.tree, s.err
}

func TestSourceTypeForMIME(t *testing.T) {
	tests := []struct {
		mime string
		want SourceType
		ok   bool
	}{
		{"application/pdf", SourcePDF, true},
		{"Application/PDF; charset=binary", SourcePDF, true},
		{MimeDOCX, SourceDOCX, true},
		{"text/plain", "", false},
		{"application/msword", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := SourceTypeForMIME(tt.mime)
		assert.Equal(t, tt.ok, ok, tt.mime)
		assert.Equal(t, tt.want, got, tt.mime)
	}
}

func TestMimeTypeForFilename(t *testing.T) {
	assert.Equal(t, MimePDF, MimeTypeForFilename("claim.PDF"))
	assert.Equal(t, MimeDOCX, MimeTypeForFilename("witness.docx"))
	assert.Equal(t, "application/octet-stream", MimeTypeForFilename("notes.txt"))
}

func TestExtract_RejectsUndeclaredType(t *testing.T) {
	e := NewExtractor(Options{}, nil)
	_, err := e.Extract(context.Background(), Blob{Data: []byte("hello"), MimeType: "text/plain", Filename: "a.txt"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtract_ContentMismatchIsFailure(t *testing.T) {
	tests := []struct {
		name string
		blob Blob
	}{
		{"text declared as pdf", Blob{Data: []byte("just text, not a pdf"), MimeType: MimePDF, Filename: "fake.pdf"}},
		{"pdf declared as docx", Blob{Data: pdfBytes, MimeType: MimeDOCX, Filename: "fake.docx"}},
		{"empty bytes", Blob{Data: []byte{}, MimeType: MimePDF, Filename: "empty.pdf"}},
		{"corrupt bytes", Blob{Data: []byte("\x00\x01corrupted bytes"), MimeType: MimePDF, Filename: "corrupt.pdf"}},
	}
	e := NewExtractor(Options{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(context.Background(), tt.blob)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrExtractionFailure)
			assert.NotErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func TestExtract_EmptyTextIsFailure(t *testing.T) {
	e := NewExtractor(Options{}, nil)
	e.Register(SourcePDF, &stubParser{tree: &doctree.DocTree{Children: []*doctree.DocNode{{Text: "  \n "}}}})

	_, err := e.Extract(context.Background(), Blob{Data: pdfBytes, MimeType: MimePDF, Filename: "blank.pdf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailure)
}

func TestExtract_ParserErrorIsFailure(t *testing.T) {
	e := NewExtractor(Options{}, nil)
	e.Register(SourcePDF, &stubParser{err: errors.New("bad xref")})

	_, err := e.Extract(context.Background(), Blob{Data: pdfBytes, MimeType: MimePDF, Filename: "broken.pdf"})
	assert.ErrorIs(t, err, ErrExtractionFailure)
	assert.Contains(t, err.Error(), "bad xref")
}

func TestExtract_Success(t *testing.T) {
	e := NewExtractor(Options{}, nil)
	e.Register(SourcePDF, &stubParser{tree: &doctree.DocTree{Children: []*doctree.DocNode{{Text: "Signed on 2021-10-15."}}}})

	res, err := e.Extract(context.Background(), Blob{Data: pdfBytes, MimeType: MimePDF, Filename: "lease.pdf"})
	require.NoError(t, err)
	assert.Equal(t, SourcePDF, res.SourceType)
	assert.Equal(t, "Signed on 2021-10-15.", res.Text)
}

func TestPDFParser_UsesOCRMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "scan.pdf", header.Filename)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","text":"# Order\n\nHearing listed for 2024-06-01.","pages_processed":1}`))
	}))
	defer srv.Close()

	ocr := NewOCRClient(srv.URL, 0)
	defer ocr.Close()
	e := NewExtractor(Options{OCR: ocr}, nil)

	res, err := e.Extract(context.Background(), Blob{Data: pdfBytes, MimeType: MimePDF, Filename: "scan.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "Order\n\nHearing listed for 2024-06-01.", res.Text)
}

func TestOCRClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"File type not allowed"}`))
	}))
	defer srv.Close()

	_, err := NewOCRClient(srv.URL, 0).Markdown(context.Background(), pdfBytes, "x.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
