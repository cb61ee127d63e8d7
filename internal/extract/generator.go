package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Request is a single text-completion call.
type Request struct {
	Prompt    string
	MaxTokens int
}

// Generator is a text-generation backend. Responses carry no guaranteed
// structure.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Backend names accepted by NewGenerator.
const (
	BackendLlamaCpp = "llamacpp"
	BackendClaude   = "claude"
	BackendGemini   = "gemini"
)

// BackendConfig selects and configures a Generator.
type BackendConfig struct {
	Provider string
	Endpoint string
	APIKey   string
	Model    string
}

// NewGenerator builds the backend named by cfg.Provider.
func NewGenerator(ctx context.Context, cfg BackendConfig, httpClient *http.Client) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", BackendLlamaCpp:
		return NewLlamaCppGenerator(cfg.Endpoint, httpClient), nil
	case BackendClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude backend requires an api key")
		}
		return NewClaudeGenerator(cfg.APIKey, cfg.Model, httpClient), nil
	case BackendGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini backend requires an api key")
		}
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model, httpClient)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

type closer interface{ Close() }

func closeGenerator(g Generator) {
	if c, ok := g.(closer); ok {
		c.Close()
	}
}
