package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/casegest/internal/dates"
	"github.com/dgallion1/casegest/internal/timeline"
)

// rawEvent is one element of the model's event array.
type rawEvent struct {
	Date         string   `json:"date" validate:"required"`
	Summary      string   `json:"summary" validate:"required,max=2000"`
	Context      string   `json:"context" validate:"max=20000"`
	Participants []string `json:"participants" validate:"omitempty,max=50,dive,max=200"`
	Location     string   `json:"location" validate:"max=500"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parsed is the strict parse of a located span.
type Parsed struct {
	Events  []timeline.Event
	Dropped []error
}

// ParseResponse runs both recovery stages over a raw model response.
func ParseResponse(raw string) (Parsed, error) {
	span, ok := LocateArraySpan(raw)
	if !ok {
		return Parsed{}, &MalformedOutputError{Reason: "no array span", Raw: raw}
	}
	p, err := ParseEvents(span)
	if err != nil {
		var mErr *MalformedOutputError
		if errors.As(err, &mErr) {
			mErr.Raw = raw
		}
		return Parsed{}, err
	}
	return p, nil
}

// ParseEvents strictly decodes span as a JSON array of event objects. A
// non-empty array without a single object is malformed output.
// Elements that are not objects, fail validation, or carry an unparsable
// date are dropped and reported; their valid siblings are kept. Dates are
// normalized to canonical keys.
func ParseEvents(span string) (Parsed, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(span), &elems); err != nil {
		return Parsed{}, &MalformedOutputError{Reason: "span is not a JSON array", Raw: span, Err: err}
	}
	if len(elems) > 0 && countObjects(elems) == 0 {
		return Parsed{}, &MalformedOutputError{Reason: "array holds no event objects", Raw: span}
	}

	var p Parsed
	for i, elem := range elems {
		ev, err := parseElement(elem)
		if err != nil {
			p.Dropped = append(p.Dropped, fmt.Errorf("element %d: %w", i, err))
			continue
		}
		p.Events = append(p.Events, ev)
	}
	return p, nil
}

func parseElement(elem json.RawMessage) (timeline.Event, error) {
	trimmed := strings.TrimSpace(string(elem))
	if !strings.HasPrefix(trimmed, "{") {
		return timeline.Event{}, fmt.Errorf("not an object")
	}

	var re rawEvent
	if err := json.Unmarshal(elem, &re); err != nil {
		return timeline.Event{}, fmt.Errorf("decode: %w", err)
	}
	re.Date = strings.TrimSpace(re.Date)
	re.Summary = strings.TrimSpace(re.Summary)
	if err := validate.Struct(re); err != nil {
		return timeline.Event{}, fmt.Errorf("validate: %w", err)
	}

	key, err := dates.KeyString(re.Date)
	if err != nil {
		return timeline.Event{}, err
	}

	var participants []string
	for _, p := range re.Participants {
		if p = strings.TrimSpace(p); p != "" {
			participants = append(participants, p)
		}
	}

	return timeline.Event{
		Date:         key,
		Summary:      re.Summary,
		Context:      strings.TrimSpace(re.Context),
		Participants: participants,
		Location:     strings.TrimSpace(re.Location),
	}, nil
}
