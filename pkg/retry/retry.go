// Package retry holds two kinds of retry policy: Classify decides whether a
// rejected SQL statement is worth regenerating, and the backoff helpers
// retry transient infrastructure failures (LLM endpoints, datasource
// connections at startup).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	JitterFactor     float64 // 0.0-1.0, default 0.1 for +/-10% jitter
	MaxSameErrorType int     // After N consecutive same-type errors, treat as permanent (default: 5)

	// OnRetry, if set, is called before each wait with the 1-based attempt
	// that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns defaults suited to datasource connections:
// 3 retries with 100ms initial delay, capped at 5s, doubling each time, with 10% jitter
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 5,
	}
}

// GeneratorConfig returns defaults for LLM endpoint calls, which fail slower
// and recover slower than database connections.
func GeneratorConfig() *Config {
	return &Config{
		MaxRetries:       2,
		InitialDelay:     500 * time.Millisecond,
		MaxDelay:         10 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.2,
		MaxSameErrorType: 3,
	}
}

// applyJitter returns delay +/- (delay * jitterFactor * random(-1 to +1)).
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// backoff tracks the delay between attempts.
type backoff struct {
	cfg   *Config
	delay time.Duration
}

func newBackoff(cfg *Config) *backoff {
	return &backoff{cfg: cfg, delay: cfg.InitialDelay}
}

// wait sleeps for the current delay and grows it. It returns ctx.Err() if
// the context is done first.
func (b *backoff) wait(ctx context.Context, attempt int, err error) error {
	d := applyJitter(b.delay, b.cfg.JitterFactor)
	if b.cfg.OnRetry != nil {
		b.cfg.OnRetry(attempt+1, err, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		b.delay = time.Duration(float64(b.delay) * b.cfg.Multiplier)
		if b.delay > b.cfg.MaxDelay {
			b.delay = b.cfg.MaxDelay
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryableError is an interface for errors that explicitly declare their retryability.
// LLM errors implement this interface.
type RetryableError interface {
	error
	IsRetryable() bool
}

var retryablePatterns = []string{
	// Connection errors
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"deadlock",
	"network is unreachable",
	"bad connection",
	// SQLite writer contention
	"database is locked",
	"sqlite_busy",
	// HTTP status codes
	"429",
	"500",
	"502",
	"503",
	"504",
	// HTTP error messages
	"rate limit",
	"service busy",
	"service unavailable",
	"too many requests",
	// Self-hosted model endpoints (Ollama, vLLM)
	"cuda error",
	"gpu error",
	"out of memory",
}

// IsRetryable determines if an error is transient and worth retrying.
//
// An error anywhere in the chain implementing RetryableError decides;
// otherwise the message is matched against known transient patterns.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// classifyErrorType extracts a coarse category used to detect repeated
// failures of the same kind ("503", "timeout", "connection", "locked", ...).
func classifyErrorType(err error) string {
	if err == nil {
		return "nil"
	}

	errStr := strings.ToLower(err.Error())

	httpCodes := []string{"503", "502", "504", "500", "429", "404", "403", "401", "400"}
	for _, code := range httpCodes {
		if strings.Contains(errStr, code) {
			return code
		}
	}

	switch {
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "bad connection"):
		return "connection"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "timed out"):
		return "timeout"
	case strings.Contains(errStr, "broken pipe"):
		return "broken_pipe"
	case strings.Contains(errStr, "database is locked"), strings.Contains(errStr, "sqlite_busy"):
		return "locked"
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "too many requests"):
		return "rate_limit"
	case strings.Contains(errStr, "cuda error"), strings.Contains(errStr, "gpu error"),
		strings.Contains(errStr, "cuda out of memory"), strings.Contains(errStr, "gpu out of memory"):
		return "gpu"
	case strings.Contains(errStr, "out of memory"):
		return "oom"
	}

	return "unknown"
}

// DoIfRetryableWithResult calls fn until it succeeds, backing off between
// attempts. Only transient errors are retried; permanent ones (auth failures,
// bad requests, a missing database file) return immediately with the zero
// value. After MaxSameErrorType consecutive failures of the same type the
// error is treated as permanent.
//
// It wraps generator calls and the startup catalog load.
func DoIfRetryableWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var zero T
	var lastErr error
	b := newBackoff(cfg)
	sameErrorCount := 0
	var lastErrorType string

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		currentErrorType := classifyErrorType(err)
		if currentErrorType == lastErrorType {
			sameErrorCount++
			if cfg.MaxSameErrorType > 0 && sameErrorCount >= cfg.MaxSameErrorType {
				return zero, fmt.Errorf("repeated error (%d times, type=%s): %w", sameErrorCount, currentErrorType, err)
			}
		} else {
			sameErrorCount = 1
			lastErrorType = currentErrorType
		}

		if attempt < cfg.MaxRetries {
			if werr := b.wait(ctx, attempt, err); werr != nil {
				return zero, werr
			}
		}
	}

	return zero, lastErr
}
