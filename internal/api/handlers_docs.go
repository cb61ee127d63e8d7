package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/casegest/internal/mindmap"
	"github.com/dgallion1/casegest/internal/store"
	"github.com/dgallion1/casegest/internal/timeline"
)

// handleListDocuments lists stored documents without their text.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.deps.Store.Documents()
	for i := range docs {
		docs[i].RawText = ""
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Store.Document(chi.URLParam(r, "docID"))
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleTimelineEvents returns the timeline, optionally filtered by q
// (summary, context or date substring) and document, in sort order.
func (s *Server) handleTimelineEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	order, err := timeline.ParseOrder(q.Get("sort"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	events := s.deps.Store.Timeline().Query(timeline.Query{
		Search:     q.Get("q"),
		DocumentID: q.Get("document"),
		Order:      order,
	})
	writeJSON(w, http.StatusOK, events)
}

// handleMindmap lays out the current timeline. An empty timeline yields null.
func (s *Server) handleMindmap(w http.ResponseWriter, r *http.Request) {
	items := mindmap.FromTimeline(s.deps.Store.Timeline().Snapshot())
	graph, err := mindmap.Layout(items, s.canvas)
	if err != nil {
		s.log.Error("mindmap layout failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if graph != nil && len(graph.Skipped) > 0 {
		s.log.Warn("mindmap items skipped", "count", len(graph.Skipped))
	}
	writeJSON(w, http.StatusOK, graph)
}
