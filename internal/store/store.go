// Package store owns the in-memory documents and timeline for the lifetime
// of the process.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/casegest/internal/timeline"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("store closed")

// ErrNotFound is returned for unknown document ids.
var ErrNotFound = errors.New("document not found")

// Document is an uploaded file and its extracted text. Immutable once stored.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SourceType  string    `json:"sourceType"`
	UploadedAt  time.Time `json:"uploadedAt"`
	RawText     string    `json:"rawText,omitempty"`
	ContentHash string    `json:"contentHash"`
}

// NewDocument builds a document with a fresh id and a hash of its text.
func NewDocument(name, sourceType, rawText string, uploadedAt time.Time) Document {
	sum := sha256.Sum256([]byte(rawText))
	return Document{
		ID:          uuid.NewString(),
		Name:        name,
		SourceType:  sourceType,
		UploadedAt:  uploadedAt.UTC(),
		RawText:     rawText,
		ContentHash: hex.EncodeToString(sum[:]),
	}
}

// Store is constructed at startup, shared by reference, and closed on
// shutdown.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]Document
	order  []string
	tl     *timeline.Timeline
	closed bool
}

func New() *Store {
	return &Store{
		docs: make(map[string]Document),
		tl:   timeline.New(),
	}
}

// Timeline returns the shared timeline for reads.
func (s *Store) Timeline() *timeline.Timeline {
	return s.tl
}

// AddDocuments stores documents without touching the timeline.
func (s *Store) AddDocuments(docs ...Document) error {
	return s.Commit(docs, nil)
}

// Commit stores a batch of documents and appends their events as one step.
// Concurrent commits are serialized so each batch's append and re-sort is
// atomic with respect to the others.
func (s *Store) Commit(docs []Document, events []timeline.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("commit: document %q has no id", d.Name)
		}
		if _, exists := s.docs[d.ID]; exists {
			return fmt.Errorf("commit: duplicate document id %s", d.ID)
		}
	}
	if err := s.tl.Append(events...); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	for _, d := range docs {
		s.docs[d.ID] = d
		s.order = append(s.order, d.ID)
	}
	return nil
}

// Documents lists stored documents by upload time, then insertion order.
func (s *Store) Documents() []Document {
	s.mu.RLock()
	out := make([]Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id])
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out
}

// Document returns one document by id.
func (s *Store) Document(id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// Close marks the store closed. Reads keep working.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
