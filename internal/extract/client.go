package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ClientConfig bounds every model call.
type ClientConfig struct {
	Timeout        time.Duration // per call, including retries
	MaxRetries     int           // extra attempts on retryable statuses
	RetryBaseDelay time.Duration
	RateLimit      float64 // calls per second, 0 disables
	RateBurst      int

	BreakerFailures    uint32        // consecutive failures that open the breaker, 0 disables
	BreakerOpenTimeout time.Duration // time the breaker stays open
}

// DefaultClientConfig returns a single-attempt, two-minute bounded client.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:            2 * time.Minute,
		RetryBaseDelay:     500 * time.Millisecond,
		RateBurst:          1,
		BreakerFailures:    5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// Observer receives one notification per model call.
type Observer interface {
	ObserveLLMCall(backend, outcome string, d time.Duration)
}

// Outcomes reported to an Observer.
const (
	OutcomeOK          = "ok"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
	OutcomeCanceled    = "canceled"
)

// Client wraps a Generator with a timeout, retries, rate limiting, a circuit
// breaker and latency statistics. It is itself a Generator and maps every
// failure to ErrTimeout or ErrServiceUnavailable.
type Client struct {
	gen      Generator
	cfg      ClientConfig
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	stats    *LLMStats
	observer Observer
	log      *slog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithObserver reports call outcomes and latencies.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) { c.observer = o }
}

// WithStats replaces the default one-hour latency window.
func WithStats(s *LLMStats) ClientOption {
	return func(c *Client) { c.stats = s }
}

func NewClient(gen Generator, cfg ClientConfig, log *slog.Logger, opts ...ClientOption) *Client {
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		gen:   gen,
		cfg:   cfg,
		stats: NewLLMStats(time.Hour),
		log:   log.With("backend", gen.Name()),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	failures := cfg.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm-" + gen.Name(),
		Timeout: cfg.BreakerOpenTimeout,
		// A caller giving up says nothing about the backend's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return failures > 0 && counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return c.gen.Name() }

// Stats returns the latency snapshot of recent calls.
func (c *Client) Stats() StatsSnapshot { return c.stats.Snapshot() }

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string { return c.breaker.State().String() }

// Generate performs one bounded model call.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	callCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := c.call(callCtx, req)
	elapsed := time.Since(start)

	err = c.classify(ctx, callCtx, err)
	outcome := outcomeOf(err)
	c.stats.Record(elapsed, outcome)
	if c.observer != nil {
		c.observer.ObserveLLMCall(c.gen.Name(), outcome, elapsed)
	}
	if err != nil {
		c.log.Warn("llm call failed", "duration_ms", elapsed.Milliseconds(), "err", err)
		return "", err
	}
	c.log.Debug("llm call complete", "duration_ms", elapsed.Milliseconds(), "response_len", len(out))
	return out, nil
}

func (c *Client) call(ctx context.Context, req Request) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.RetryBaseDelay
	eb.MaxInterval = 30 * time.Second
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.cfg.MaxRetries)), ctx)

	var out string
	attempt := 0
	op := func() error {
		attempt++
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.gen.Generate(ctx, req)
		})
		if err != nil {
			if IsRetryable(err) && ctx.Err() == nil {
				c.log.Debug("retryable llm error", "attempt", attempt, "err", err)
				return err
			}
			return backoff.Permanent(err)
		}
		out = res.(string)
		return nil
	}
	if err := backoff.Retry(op, b); err != nil {
		return "", err
	}
	return out, nil
}

// classify maps a raw failure to the package's error kinds. Cancellation of
// the caller's own context is passed through unchanged.
func (c *Client) classify(parent, callCtx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case parent.Err() != nil && errors.Is(parent.Err(), context.Canceled):
		return parent.Err()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: circuit breaker %s", ErrServiceUnavailable, c.breaker.State())
	default:
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeUnavailable
	}
}

// Close releases the underlying backend.
func (c *Client) Close() {
	closeGenerator(c.gen)
}
