package resolve

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"strings"
	"time"
)

type retryConfig struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts:  2,
		initialDelay: 300 * time.Millisecond,
		maxDelay:     2 * time.Second,
		multiplier:   2.0,
	}
}

// retryTransient runs fn, retrying with jittered exponential backoff while
// the failure looks transient. Non-transient errors return immediately;
// context cancellation between attempts is respected.
func retryTransient(ctx context.Context, cfg retryConfig, fn func() error) error {
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = 1
	}

	var lastErr error
	delay := cfg.initialDelay

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransientError(lastErr) {
			return lastErr
		}
		if attempt == cfg.maxAttempts-1 {
			break
		}

		// ±25% jitter keeps concurrent resolution calls from hammering an
		// upstream in lockstep.
		jittered := time.Duration(float64(delay) * (0.75 + rand.Float64()*0.5))
		if jittered > cfg.maxDelay {
			jittered = cfg.maxDelay
		}

		timer := time.NewTimer(jittered)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.multiplier)
		if delay > cfg.maxDelay {
			delay = cfg.maxDelay
		}
	}
	return lastErr
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "eof")
}
