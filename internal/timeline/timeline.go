// Package timeline holds the chronologically ordered collection of events
// extracted from all processed documents.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/casegest/internal/dates"
)

// ErrInvalidEvent is returned when an event cannot be placed on the timeline.
var ErrInvalidEvent = errors.New("invalid timeline event")

// Event is a single dated occurrence extracted from a document.
type Event struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`
	Summary      string   `json:"summary"`
	Context      string   `json:"context"`
	DocumentID   string   `json:"documentId"`
	DocumentName string   `json:"documentName"`
	Participants []string `json:"participants,omitempty"`
	Location     string   `json:"location,omitempty"`
}

// Order is the sort direction of a query.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder maps a query parameter to an Order. Empty means ascending.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OrderAsc):
		return OrderAsc, nil
	case string(OrderDesc):
		return OrderDesc, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

// Query filters and orders a timeline view. Zero value returns everything
// in ascending order.
type Query struct {
	Search     string
	DocumentID string
	Order      Order
}

type entry struct {
	event Event
	day   time.Time
}

// Timeline is safe for concurrent use. Entries are kept sorted by date with
// ties in insertion order.
type Timeline struct {
	mu      sync.RWMutex
	entries []entry
}

func New() *Timeline {
	return &Timeline{}
}

// Append adds a batch of events and re-sorts the whole collection. Either
// every event is added or, if any date is unparsable, none are.
func (t *Timeline) Append(events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := make([]entry, 0, len(events))
	for i, ev := range events {
		key, err := dates.KeyString(ev.Date)
		if err != nil {
			return fmt.Errorf("%w: event %d (%q): %v", ErrInvalidEvent, i, ev.Summary, err)
		}
		day, err := dates.Parse(key)
		if err != nil {
			return fmt.Errorf("%w: event %d: %v", ErrInvalidEvent, i, err)
		}
		ev.Date = key
		batch = append(batch, entry{event: ev, day: day})
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, batch...)
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].day.Before(t.entries[j].day)
	})
	return nil
}

// Snapshot returns a copy of all events in ascending order.
func (t *Timeline) Snapshot() []Event {
	return t.Query(Query{})
}

// Query returns a filtered, ordered view without mutating the timeline.
func (t *Timeline) Query(q Query) []Event {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	t.mu.RLock()
	matched := make([]entry, 0, len(t.entries))
	for _, e := range t.entries {
		if q.DocumentID != "" && e.event.DocumentID != q.DocumentID {
			continue
		}
		if search != "" && !matches(e.event, search) {
			continue
		}
		matched = append(matched, e)
	}
	t.mu.RUnlock()

	if q.Order == OrderDesc {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].day.After(matched[j].day)
		})
	}

	out := make([]Event, len(matched))
	for i, e := range matched {
		out[i] = e.event
	}
	return out
}

func matches(ev Event, lowered string) bool {
	return strings.Contains(strings.ToLower(ev.Summary), lowered) ||
		strings.Contains(strings.ToLower(ev.Context), lowered) ||
		strings.Contains(ev.Date, lowered)
}

// Len reports the number of events.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// DocumentIDs returns the distinct owning document ids, sorted.
func (t *Timeline) DocumentIDs() []string {
	t.mu.RLock()
	seen := make(map[string]struct{})
	for _, e := range t.entries {
		seen[e.event.DocumentID] = struct{}{}
	}
	t.mu.RUnlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
