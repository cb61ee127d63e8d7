package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/casegest/internal/chunker"
	"github.com/dgallion1/casegest/internal/timeline"
)

// DefaultMaxTokens is the completion budget of one model call.
const DefaultMaxTokens = 2048

// Config controls how documents are turned into model calls.
type Config struct {
	MaxTokens int
	Chunking  bool
	Chunk     chunker.Config
}

func DefaultConfig() Config {
	return Config{
		MaxTokens: DefaultMaxTokens,
		Chunking:  true,
		Chunk:     chunker.DefaultConfig(),
	}
}

// Extraction is the outcome of extracting one document.
type Extraction struct {
	Events []timeline.Event
	// Malformed holds one *MalformedOutputError per model response that
	// carried no usable array. Such responses contribute zero events.
	Malformed []error
	// Dropped counts array elements rejected by strict validation.
	Dropped int
	Calls   int
}

// Service turns document text into timeline events.
type Service struct {
	gen Generator
	cfg Config
	log *slog.Logger
}

func NewService(gen Generator, cfg Config, log *slog.Logger) *Service {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{gen: gen, cfg: cfg, log: log}
}

// ExtractEvents prompts the model once per chunk of text and returns the
// merged events stamped with the owning document. Malformed responses are
// logged and recovered; only model call failures are returned as errors.
func (s *Service) ExtractEvents(ctx context.Context, text, documentID, documentName string) (Extraction, error) {
	log := s.log.With("document_id", documentID, "document", documentName)

	parts := []string{text}
	if s.cfg.Chunking {
		chunks := chunker.ChunkText(text, s.cfg.Chunk)
		if len(chunks) > 0 {
			parts = parts[:0]
			for _, c := range chunks {
				parts = append(parts, c.Text)
			}
		}
	}

	var res Extraction
	seen := make(map[eventKey]struct{})
	for i, part := range parts {
		raw, err := s.gen.Generate(ctx, Request{
			Prompt:    BuildEventPrompt(documentName, part, i, len(parts)),
			MaxTokens: s.cfg.MaxTokens,
		})
		res.Calls++
		if err != nil {
			return Extraction{}, fmt.Errorf("extract events from %q (part %d/%d): %w", documentName, i+1, len(parts), err)
		}

		parsed, err := ParseResponse(raw)
		if err != nil {
			log.Warn("malformed model output", "part", i+1, "err", err, "raw_response", raw)
			res.Malformed = append(res.Malformed, err)
			continue
		}
		if len(parsed.Dropped) > 0 {
			log.Warn("dropped invalid events", "part", i+1, "count", len(parsed.Dropped), "first", parsed.Dropped[0].Error())
			res.Dropped += len(parsed.Dropped)
		}

		for _, ev := range parsed.Events {
			k := eventKey{ev.Date, ev.Summary, ev.Context}
			if len(parts) > 1 {
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
			}
			res.Events = append(res.Events, ev)
		}
	}

	for i := range res.Events {
		res.Events[i].ID = fmt.Sprintf("%s-%d", documentID, i)
		res.Events[i].DocumentID = documentID
		res.Events[i].DocumentName = documentName
	}

	log.Info("events extracted", "events", len(res.Events), "calls", res.Calls, "malformed", len(res.Malformed), "dropped", res.Dropped)
	return res, nil
}

// eventKey identifies events repeated across overlapping chunks.
type eventKey struct {
	date, summary, context string
}
