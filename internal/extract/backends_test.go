package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLlamaCppGenerator(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      string
		retryable bool
		wantErr   bool
	}{
		{name: "json content", status: 200, body: `{"content":"[{\"date\":\"2024-01-01\"}]","stop":true}`, want: `[{"date":"2024-01-01"}]`},
		{name: "plain text", status: 200, body: `Here: [1]`, want: `Here: [1]`},
		{name: "json without content", status: 200, body: `[{"date":"2024-01-01"}]`, want: `[{"date":"2024-01-01"}]`},
		{name: "overloaded", status: 503, body: "busy", retryable: true, wantErr: true},
		{name: "bad request", status: 400, body: "nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got completionRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g := NewLlamaCppGenerator(srv.URL, srv.Client())
			out, err := g.Generate(context.Background(), Request{Prompt: "extract", MaxTokens: 2048})

			assert.Equal(t, "extract", got.Prompt)
			assert.Equal(t, 2048, got.NPredict)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.retryable, IsRetryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestClaudeGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 512, req.MaxTokens)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"[]"},{"type":"text","text":" done"}]}`))
	}))
	defer srv.Close()

	g := NewClaudeGenerator("secret", "", srv.Client())
	g.endpoint = srv.URL

	out, err := g.Generate(context.Background(), Request{Prompt: "p", MaxTokens: 512})
	require.NoError(t, err)
	assert.Equal(t, "[] done", out)
	assert.Equal(t, defaultClaudeModel, g.Model())
}

func TestClaudeGenerator_RateLimitedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewClaudeGenerator("k", "m", srv.Client())
	g.endpoint = srv.URL

	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	assert.True(t, IsRetryable(err))
}

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator(context.Background(), BackendConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendLlamaCpp, g.Name())

	_, err = NewGenerator(context.Background(), BackendConfig{Provider: "claude"}, nil)
	assert.Error(t, err)

	_, err = NewGenerator(context.Background(), BackendConfig{Provider: "gpt-17"}, nil)
	assert.Error(t, err)
}
