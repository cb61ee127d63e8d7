// Package dates normalizes the date values found in model output and event
// records to canonical YYYY-MM-DD keys.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layout is the canonical date key layout.
const Layout = "2006-01-02"

// ErrUnparsable is returned for values that cannot be resolved to a calendar date.
var ErrUnparsable = errors.New("unparsable date")

// Key normalizes a date value to its canonical key. Strings may carry a time
// component ("2024-01-05T10:00:00Z", "2024-01-05 10:00"); the calendar date
// as written is kept. time.Time values are taken in UTC.
func Key(v any) (string, error) {
	switch d := v.(type) {
	case string:
		return KeyString(d)
	case time.Time:
		if d.IsZero() {
			return "", fmt.Errorf("%w: zero time", ErrUnparsable)
		}
		return d.UTC().Format(Layout), nil
	case *time.Time:
		if d == nil {
			return "", fmt.Errorf("%w: nil time", ErrUnparsable)
		}
		return Key(*d)
	case nil:
		return "", fmt.Errorf("%w: missing", ErrUnparsable)
	default:
		return KeyString(fmt.Sprint(v))
	}
}

// KeyString normalizes a date string. Canonical keys are returned unchanged.
func KeyString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrUnparsable)
	}

	head := s
	if i := strings.IndexAny(s, "T "); i > 0 {
		head = s[:i]
	}
	if t, err := time.Parse(Layout, head); err == nil {
		return t.Format(Layout), nil
	}

	// Non-canonical forms ("March 3, 2021", "2021/03/03") that slipped past
	// the prompt. Ambiguous day/month orders are rejected.
	t, err := dateparse.ParseStrict(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnparsable, s)
	}
	return t.Format(Layout), nil
}

// Parse resolves a key (canonical or not) to a comparable time at UTC midnight.
func Parse(key string) (time.Time, error) {
	if t, err := time.Parse(Layout, key); err == nil {
		return t, nil
	}
	k, err := KeyString(key)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(Layout, k)
}

// Label renders a key the way the mindmap shows it, e.g. "15 OCTOBER 2021".
func Label(key string) string {
	t, err := Parse(key)
	if err != nil {
		return key
	}
	return fmt.Sprintf("%d %s %d", t.Day(), strings.ToUpper(t.Month().String()), t.Year())
}
