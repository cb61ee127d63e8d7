package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultLlamaCppEndpoint is the completion route of a local llama.cpp server.
const DefaultLlamaCppEndpoint = "http://localhost:8080/completion"

// LlamaCppGenerator posts {prompt, n_predict} to a llama.cpp style
// completion endpoint.
type LlamaCppGenerator struct {
	endpoint   string
	httpClient *http.Client
}

func NewLlamaCppGenerator(endpoint string, httpClient *http.Client) *LlamaCppGenerator {
	if endpoint == "" {
		endpoint = DefaultLlamaCppEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &LlamaCppGenerator{endpoint: endpoint, httpClient: httpClient}
}

func (g *LlamaCppGenerator) Name() string { return BackendLlamaCpp }

type completionRequest struct {
	Prompt   string `json:"prompt"`
	NPredict int    `json:"n_predict,omitempty"`
}

type completionResponse struct {
	Content *string `json:"content"`
}

// Generate returns the "content" field of a JSON reply, or the raw body when
// the server answers with plain text.
func (g *LlamaCppGenerator) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(completionRequest{Prompt: req.Prompt, NPredict: req.MaxTokens})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llama.cpp request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llama.cpp status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Content != nil {
		return *parsed.Content, nil
	}
	return string(respBody), nil
}

func (g *LlamaCppGenerator) Close() {
	g.httpClient.CloseIdleConnections()
}
