package extract

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcGenerator func(ctx context.Context, req Request) (string, error)

func (f funcGenerator) Name() string { return "func" }

func (f funcGenerator) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveLLMCall(_, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func testClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:        time.Second,
		RetryBaseDelay: time.Millisecond,
	}
}

func TestClient_Success(t *testing.T) {
	obs := &recordingObserver{}
	c := NewClient(funcGenerator(func(_ context.Context, req Request) (string, error) {
		return "echo:" + req.Prompt, nil
	}), testClientConfig(), discardLogger(), WithObserver(obs))

	out, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", out)
	assert.Equal(t, 1, c.Stats().Count)
	assert.Equal(t, []string{OutcomeOK}, obs.outcomes)
}

func TestClient_Timeout(t *testing.T) {
	obs := &recordingObserver{}
	cfg := testClientConfig()
	cfg.Timeout = 20 * time.Millisecond
	c := NewClient(funcGenerator(func(ctx context.Context, _ Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), cfg, discardLogger(), WithObserver(obs))

	_, err := c.Generate(context.Background(), Request{Prompt: "slow"})
	require.ErrorIs(t, err, ErrTimeout)
	assert.False(t, errors.Is(err, ErrServiceUnavailable))
	assert.Equal(t, []string{OutcomeTimeout}, obs.outcomes)
}

func TestClient_EndpointErrorIsUnavailable(t *testing.T) {
	c := NewClient(funcGenerator(func(context.Context, Request) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	}), testClientConfig(), discardLogger())

	_, err := c.Generate(context.Background(), Request{})
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClient_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	c := NewClient(funcGenerator(func(context.Context, Request) (string, error) {
		calls.Add(1)
		return "", &RetryableError{StatusCode: 503, Message: "busy"}
	}), testClientConfig(), discardLogger())

	_, err := c.Generate(context.Background(), Request{})
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesRetryableErrors(t *testing.T) {
	var calls atomic.Int32
	cfg := testClientConfig()
	cfg.MaxRetries = 3
	c := NewClient(funcGenerator(func(context.Context, Request) (string, error) {
		if calls.Add(1) < 3 {
			return "", &RetryableError{StatusCode: 429, Message: "slow down"}
		}
		return "[]", nil
	}), cfg, discardLogger())

	out, err := c.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryPermanentErrors(t *testing.T) {
	var calls atomic.Int32
	cfg := testClientConfig()
	cfg.MaxRetries = 3
	c := NewClient(funcGenerator(func(context.Context, Request) (string, error) {
		calls.Add(1)
		return "", errors.New("status 400: bad request")
	}), cfg, discardLogger())

	_, err := c.Generate(context.Background(), Request{})
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	cfg := testClientConfig()
	cfg.BreakerFailures = 2
	cfg.BreakerOpenTimeout = time.Minute
	c := NewClient(funcGenerator(func(context.Context, Request) (string, error) {
		calls.Add(1)
		return "", errors.New("boom")
	}), cfg, discardLogger())

	for i := 0; i < 2; i++ {
		_, err := c.Generate(context.Background(), Request{})
		require.ErrorIs(t, err, ErrServiceUnavailable)
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.Generate(context.Background(), Request{})
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Contains(t, err.Error(), "circuit breaker")
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the backend")
}

func TestClient_CallerCancellationPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(funcGenerator(func(ctx context.Context, _ Request) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}), testClientConfig(), discardLogger())

	_, err := c.Generate(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestClient_CallerCancellationKeepsBreakerClosed(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	cfg := testClientConfig()
	cfg.BreakerFailures = 2
	cfg.BreakerOpenTimeout = time.Minute
	c := NewClient(funcGenerator(func(ctx context.Context, _ Request) (string, error) {
		if fail.Load() {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "ok", nil
	}), cfg, discardLogger())

	for range 5 {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Generate(ctx, Request{})
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", c.BreakerState())

	fail.Store(false)
	out, err := c.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestClient_RateLimited(t *testing.T) {
	cfg := testClientConfig()
	cfg.RateLimit = 20
	cfg.RateBurst = 1
	c := NewClient(funcGenerator(func(context.Context, Request) (string, error) {
		return "ok", nil
	}), cfg, discardLogger())

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Generate(context.Background(), Request{})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
