package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/casegest/internal/parser"
	"github.com/dgallion1/casegest/internal/pipeline"
)

const uploadField = "documents"

// handleUpload accepts up to UploadMaxFiles documents as one batch. By default
// the batch is processed before responding; ?async=true queues it and returns
// a poll URL instead.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadMaxBytes*int64(s.cfg.UploadMaxFiles)+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "upload exceeds size limit", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		jsonError(w, "No files uploaded", http.StatusBadRequest)
		return
	}
	if len(headers) > s.cfg.UploadMaxFiles {
		jsonError(w, fmt.Sprintf("too many files: %d (max %d)", len(headers), s.cfg.UploadMaxFiles), http.StatusBadRequest)
		return
	}

	files := make([]pipeline.File, 0, len(headers))
	for _, fh := range headers {
		filename := sanitizeFilename(fh.Filename)

		f, err := fh.Open()
		if err != nil {
			jsonError(w, "failed to open "+filename, http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.UploadMaxBytes+1))
		f.Close()
		if err != nil {
			jsonError(w, "failed to read "+filename, http.StatusInternalServerError)
			return
		}
		if int64(len(data)) > s.cfg.UploadMaxBytes {
			jsonError(w, fmt.Sprintf("%s exceeds max size (%d bytes)", filename, s.cfg.UploadMaxBytes), http.StatusRequestEntityTooLarge)
			return
		}

		files = append(files, pipeline.File{
			Filename: filename,
			MimeType: declaredType(fh.Header.Get("Content-Type"), filename),
			Data:     data,
		})
	}

	b := pipeline.NewBatch(files)
	log := s.log.With("batch_id", b.ID, "files", len(files))

	if r.URL.Query().Get("async") == "true" {
		if err := s.deps.Pipeline.Submit(b); err != nil {
			log.Warn("batch rejected", "error", err)
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"batchId": b.ID,
			"status":  pipeline.StatusQueued,
			"pollUrl": fmt.Sprintf("/api/documents/upload/%s/status", b.ID),
		})
		return
	}

	if err := s.deps.Pipeline.Run(r.Context(), b); err != nil {
		log.Error("batch failed", "error", err)
		jsonError(w, "Error processing documents", http.StatusInternalServerError)
		return
	}

	snap := b.Snapshot()
	if snap.Status == pipeline.StatusFailed {
		failed, _ := snap.FirstFailure()
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message":   "Error processing documents",
			"item":      failed.Filename,
			"error":     failed.Error,
			"errorKind": failed.ErrorKind,
			"batch":     snap,
		})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	b := s.deps.Pipeline.GetBatch(chi.URLParam(r, "batchID"))
	if b == nil {
		jsonError(w, "batch not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, b.Snapshot())
}

// declaredType prefers the part's Content-Type. Clients that send a generic
// type get one guessed from the extension; the extractor still checks the
// content against it.
func declaredType(header, filename string) string {
	header = strings.TrimSpace(header)
	if header == "" || strings.HasPrefix(header, "application/octet-stream") {
		return parser.MimeTypeForFilename(filename)
	}
	return header
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
