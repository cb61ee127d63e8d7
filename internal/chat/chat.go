// Package chat answers free-text questions grounded in the current timeline.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/casegest/internal/extract"
	"github.com/dgallion1/casegest/internal/timeline"
)

// ErrEmptyQuestion is returned when no question text was supplied.
var ErrEmptyQuestion = errors.New("no message provided")

// NoEventsContext is the context block used for an empty timeline.
const NoEventsContext = "No timeline events available."

// Snapshotter supplies the events a question is answered from.
type Snapshotter interface {
	Snapshot() []timeline.Event
}

// BuildContext serializes events into the block embedded in the prompt.
func BuildContext(events []timeline.Event) string {
	if len(events) == 0 {
		return NoEventsContext
	}
	var sb strings.Builder
	for i, ev := range events {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "Date: %s\nSummary: %s\nDocument: %s\nContext: %s\n---",
			ev.Date, ev.Summary, ev.DocumentName, ev.Context)
	}
	return sb.String()
}

// BuildPrompt wraps the timeline context and the question in the
// instruction format the completion models expect.
func BuildPrompt(timelineContext, question string) string {
	var sb strings.Builder
	sb.WriteString("[INST]\n<<SYS>>\n")
	sb.WriteString("You are an assistant for a legal case timeline. You have access to the following timeline of events extracted from legal documents:\n\n")
	sb.WriteString(timelineContext)
	sb.WriteString("\n\nAnswer questions based on the timeline above. If the information is not in the timeline, say that you don't have that information.\n")
	sb.WriteString("Be concise, accurate, and helpful. Cite the document names when providing information.\n")
	sb.WriteString("<</SYS>>\n\n")
	sb.WriteString(question)
	sb.WriteString("\n\n[/INST]\n")
	return sb.String()
}

// Service forwards questions to the model together with the timeline.
type Service struct {
	gen       extract.Generator
	events    Snapshotter
	maxTokens int
	log       *slog.Logger
}

func NewService(gen extract.Generator, events Snapshotter, maxTokens int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{gen: gen, events: events, maxTokens: maxTokens, log: log}
}

// Ask answers one question. Each call reads a fresh timeline snapshot and
// keeps no state between calls.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	events := s.events.Snapshot()
	prompt := BuildPrompt(BuildContext(events), question)

	answer, err := s.gen.Generate(ctx, extract.Request{Prompt: prompt, MaxTokens: s.maxTokens})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	s.log.Debug("chat answered", "events", len(events), "question_len", len(question), "answer_len", len(answer))
	return strings.TrimSpace(answer), nil
}
