package extract

import (
	"encoding/json"
	"strings"
)

// LocateArraySpan finds the event array in a model response. Among the
// bracket-balanced "[...]" spans, the first valid JSON array that is empty
// or holds an object wins, so citations like "see [1]" or "[Exhibit A]"
// ahead of the payload are skipped. Failing that, the first valid span is
// returned, then the first balanced one, for the strict parser to reject.
// Brackets inside JSON strings do not count toward balance.
func LocateArraySpan(raw string) (string, bool) {
	var firstValid, firstBalanced string
	haveValid, haveBalanced := false, false
	for i := 0; i < len(raw); i++ {
		if raw[i] != '[' {
			continue
		}
		end, ok := matchBracket(raw, i)
		if !ok {
			continue
		}
		span := raw[i : end+1]
		if !haveBalanced {
			firstBalanced, haveBalanced = span, true
		}
		if !json.Valid([]byte(span)) {
			continue
		}
		if holdsEvents(span) {
			return span, true
		}
		if !haveValid {
			firstValid, haveValid = span, true
		}
	}
	if haveValid {
		return firstValid, true
	}
	return firstBalanced, haveBalanced
}

// holdsEvents reports whether a valid JSON array is empty or has at least
// one object element.
func holdsEvents(span string) bool {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(span), &elems); err != nil {
		return false
	}
	if len(elems) == 0 {
		return true
	}
	return countObjects(elems) > 0
}

func countObjects(elems []json.RawMessage) int {
	n := 0
	for _, e := range elems {
		if strings.HasPrefix(strings.TrimSpace(string(e)), "{") {
			n++
		}
	}
	return n
}

// matchBracket returns the index of the ']' closing the '[' at start.
func matchBracket(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
