package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/casegest/internal/chunker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedGenerator replays canned responses in call order.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []Request
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Generate(_ context.Context, req Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "[]", nil
	}
	r := g.responses[0]
	g.responses = g.responses[1:]
	return r, nil
}

func TestExtractEvents_StampsDocument(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`Here you go: [{"date":"2021-10-15","summary":"Claim filed","context":"c1"},{"date":"2021-11-01","summary":"Reply","context":"c2"}]`,
	}}
	svc := NewService(gen, DefaultConfig(), discardLogger())

	res, err := svc.ExtractEvents(context.Background(), "On 15 October 2021 the claim was filed.", "doc1", "claim.pdf")
	require.NoError(t, err)
	require.Len(t, res.Events, 2)

	for i, ev := range res.Events {
		assert.Equal(t, fmt.Sprintf("doc1-%d", i), ev.ID)
		assert.Equal(t, "doc1", ev.DocumentID)
		assert.Equal(t, "claim.pdf", ev.DocumentName)
	}
	assert.Equal(t, 1, res.Calls)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0].Prompt, "On 15 October 2021 the claim was filed.")
	assert.Contains(t, gen.prompts[0].Prompt, "YYYY-MM-DD")
	assert.Equal(t, DefaultMaxTokens, gen.prompts[0].MaxTokens)
}

func TestExtractEvents_NoArraySpanReturnsEmpty(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"I'm sorry, I could not find any dates."}}
	svc := NewService(gen, DefaultConfig(), discardLogger())

	res, err := svc.ExtractEvents(context.Background(), "text", "doc1", "a.docx")
	require.NoError(t, err)
	assert.Empty(t, res.Events)
	require.Len(t, res.Malformed, 1)

	var mErr *MalformedOutputError
	assert.ErrorAs(t, res.Malformed[0], &mErr)
}

func TestExtractEvents_NonArrayJSONIsRecovered(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{"date":"2024-01-01","summary":"x","context":"y"}`}}
	svc := NewService(gen, DefaultConfig(), discardLogger())

	res, err := svc.ExtractEvents(context.Background(), "text", "doc1", "a.docx")
	require.NoError(t, err)
	assert.Empty(t, res.Events)
	assert.Len(t, res.Malformed, 1)
}

func TestExtractEvents_ScalarArrayIsRecoveredAsMalformed(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`See sections [3, 4] of the lease.`}}
	svc := NewService(gen, DefaultConfig(), discardLogger())

	res, err := svc.ExtractEvents(context.Background(), "text", "doc1", "lease.pdf")
	require.NoError(t, err)
	assert.Empty(t, res.Events)
	assert.Zero(t, res.Dropped)
	require.Len(t, res.Malformed, 1)

	var mErr *MalformedOutputError
	require.ErrorAs(t, res.Malformed[0], &mErr)
	assert.Equal(t, "array holds no event objects", mErr.Reason)
}

func TestExtractEvents_GeneratorFailureIsReturned(t *testing.T) {
	gen := &scriptedGenerator{err: fmt.Errorf("%w: connection refused", ErrServiceUnavailable)}
	svc := NewService(gen, DefaultConfig(), discardLogger())

	_, err := svc.ExtractEvents(context.Background(), "text", "doc1", "a.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
}

func TestExtractEvents_ChunksAndDeduplicatesOverlap(t *testing.T) {
	var paras []string
	for i := 0; i < 4; i++ {
		paras = append(paras, strings.Repeat(fmt.Sprintf("para%d ", i), 100))
	}
	text := strings.Join(paras, "\n\n")

	gen := &scriptedGenerator{responses: []string{
		`[{"date":"2024-01-01","summary":"A","context":"a"},{"date":"2024-02-01","summary":"B","context":"b"}]`,
		`[{"date":"2024-02-01","summary":"B","context":"b"},{"date":"2024-03-01","summary":"C","context":"c"}]`,
	}}
	cfg := Config{Chunking: true, Chunk: chunker.Config{ChunkSize: 300}}
	svc := NewService(gen, cfg, discardLogger())

	res, err := svc.ExtractEvents(context.Background(), text, "doc9", "long.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Calls)
	require.Len(t, res.Events, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{res.Events[0].Summary, res.Events[1].Summary, res.Events[2].Summary})
	assert.Equal(t, "doc9-2", res.Events[2].ID)
	assert.Contains(t, gen.prompts[1].Prompt, "Part 2 of 2")
}

func TestExtractEvents_SingleCallKeepsRepeats(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`[{"date":"2024-01-01","summary":"A","context":"a"},{"date":"2024-01-01","summary":"A","context":"a"}]`,
	}}
	svc := NewService(gen, Config{Chunking: false}, discardLogger())

	res, err := svc.ExtractEvents(context.Background(), "text", "doc1", "a.pdf")
	require.NoError(t, err)
	assert.Len(t, res.Events, 2)
}

func TestExtractEvents_CountsDropped(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`[{"date":"2024-01-01","summary":"ok"},{"date":"not a date","summary":"bad"}]`,
	}}
	svc := NewService(gen, DefaultConfig(), discardLogger())

	res, err := svc.ExtractEvents(context.Background(), "text", "doc1", "a.pdf")
	require.NoError(t, err)
	assert.Len(t, res.Events, 1)
	assert.Equal(t, 1, res.Dropped)
}
