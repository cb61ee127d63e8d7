package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/casegest/internal/store"
	"github.com/dgallion1/casegest/internal/timeline"
)

// Status represents the state of a batch or one of its items.
type Status string

const (
	StatusQueued           Status = "queued"
	StatusExtractingText   Status = "extracting_text"
	StatusExtractingEvents Status = "extracting_events"
	StatusMerging          Status = "merging"
	StatusCompleted        Status = "completed"
	StatusPartial          Status = "partial"
	StatusFailed           Status = "failed"
)

// ErrorKind classifies why an item was rejected.
type ErrorKind string

const (
	KindUnsupportedFormat  ErrorKind = "unsupported_format"
	KindExtractionFailure  ErrorKind = "extraction_failure"
	KindServiceUnavailable ErrorKind = "extraction_service_unavailable"
	KindTimeout            ErrorKind = "extraction_timeout"
	KindInternal           ErrorKind = "internal"
)

// WarningMalformedOutput marks an item whose model response carried no
// usable event array. The item still succeeds.
const WarningMalformedOutput = "malformed_model_output"

// File is one uploaded blob.
type File struct {
	Filename string
	MimeType string
	Data     []byte
}

// Item tracks a single file within a batch.
type Item struct {
	mu sync.Mutex

	Index    int
	Filename string
	MimeType string

	Status     Status
	DocumentID string
	SourceType string
	Warnings   []string
	Error      string
	ErrorKind  ErrorKind

	// Internal: not serialized.
	data   []byte
	doc    store.Document
	events []timeline.Event
}

// Batch is one upload submission processed as a unit.
type Batch struct {
	mu sync.Mutex

	ID        string
	Status    Status
	Phase     string
	Items     []*Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBatch creates a queued batch for the given files.
func NewBatch(files []File) *Batch {
	now := time.Now()
	b := &Batch{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, f := range files {
		b.Items = append(b.Items, &Item{
			Index:    i,
			Filename: f.Filename,
			MimeType: f.MimeType,
			Status:   StatusQueued,
			data:     f.Data,
		})
	}
	return b
}

// SetStatus updates batch status atomically.
func (b *Batch) SetStatus(status Status, phase string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Status = status
	b.Phase = phase
	b.UpdatedAt = time.Now()
}

func (b *Batch) updatedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.UpdatedAt
}

// abort fails every unfinished item, e.g. when the pipeline shuts down
// before the batch was picked up.
func (b *Batch) abort(reason string) {
	for _, it := range b.Items {
		if !it.done() {
			it.fail(KindInternal, reason)
		}
	}
	b.SetStatus(StatusFailed, reason)
}

func (it *Item) setStatus(s Status) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.Status = s
}

func (it *Item) fail(kind ErrorKind, msg string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.Status = StatusFailed
	it.ErrorKind = kind
	it.Error = msg
	it.doc = store.Document{}
	it.events = nil
	it.data = nil
}

func (it *Item) succeed(doc store.Document, events []timeline.Event, warnings []string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.Status = StatusCompleted
	it.DocumentID = doc.ID
	it.SourceType = doc.SourceType
	it.Warnings = warnings
	it.doc = doc
	it.events = events
	it.data = nil
}

func (it *Item) ok() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.Status == StatusCompleted
}

func (it *Item) done() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.Status == StatusCompleted || it.Status == StatusFailed
}

// ItemSnapshot is a read-only, JSON-safe copy of item state.
type ItemSnapshot struct {
	Index      int       `json:"index"`
	Filename   string    `json:"filename"`
	Status     Status    `json:"status"`
	DocumentID string    `json:"documentId,omitempty"`
	SourceType string    `json:"sourceType,omitempty"`
	Events     int       `json:"events"`
	Warnings   []string  `json:"warnings"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"errorKind,omitempty"`
}

// BatchSnapshot is a read-only, JSON-safe copy of batch state.
type BatchSnapshot struct {
	ID          string         `json:"batchId"`
	Status      Status         `json:"status"`
	Phase       string         `json:"phase"`
	Items       []ItemSnapshot `json:"items"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	EventsAdded int            `json:"eventsAdded"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Snapshot returns a JSON-safe copy of the batch state.
func (b *Batch) Snapshot() BatchSnapshot {
	b.mu.Lock()
	snap := BatchSnapshot{
		ID:        b.ID,
		Status:    b.Status,
		Phase:     b.Phase,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	b.mu.Unlock()

	snap.Items = make([]ItemSnapshot, 0, len(b.Items))
	for _, it := range b.Items {
		s := it.snapshot()
		switch s.Status {
		case StatusCompleted:
			snap.Succeeded++
			snap.EventsAdded += s.Events
		case StatusFailed:
			snap.Failed++
		}
		snap.Items = append(snap.Items, s)
	}
	return snap
}

func (it *Item) snapshot() ItemSnapshot {
	it.mu.Lock()
	defer it.mu.Unlock()
	warnings := it.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return ItemSnapshot{
		Index:      it.Index,
		Filename:   it.Filename,
		Status:     it.Status,
		DocumentID: it.DocumentID,
		SourceType: it.SourceType,
		Events:     len(it.events),
		Warnings:   warnings,
		Error:      it.Error,
		ErrorKind:  it.ErrorKind,
	}
}

// FirstFailure returns the first rejected item in upload order.
func (s BatchSnapshot) FirstFailure() (ItemSnapshot, bool) {
	for _, it := range s.Items {
		if it.Status == StatusFailed {
			return it, true
		}
	}
	return ItemSnapshot{}, false
}

// BatchStore is a thread-safe in-memory batch registry with TTL eviction.
type BatchStore struct {
	mu      sync.Mutex
	batches map[string]*Batch
	ttl     time.Duration
}

func NewBatchStore(ttl time.Duration) *BatchStore {
	return &BatchStore{
		batches: make(map[string]*Batch),
		ttl:     ttl,
	}
}

func (s *BatchStore) Put(b *Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
}

func (s *BatchStore) Get(id string) *Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches[id]
}

func (s *BatchStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// Cleanup removes batches idle for longer than the TTL.
func (s *BatchStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, b := range s.batches {
		if now.Sub(b.updatedAt()) > s.ttl {
			delete(s.batches, id)
			removed++
		}
	}
	return removed
}
