package common

import (
	"context"
	"fmt"
	"math"
	"net"
	"strings"
	"time"
)

// RetryConfig configures the generic backoff-retry helper. It is shared by the
// snapshot provider's Create retry contract and anywhere else in the core that
// talks to an external collaborator that can fail transiently.
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Enabled           bool
}

// DefaultSnapshotRetryConfig matches the Snapshot Provider's documented retry
// contract: up to 3 attempts, fixed 5s delay (multiplier 1 keeps it fixed).
func DefaultSnapshotRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialDelay:      5 * time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 1,
		Enabled:           true,
	}
}

// transientMessagePatterns classifies a snapshot provider (or similarly
// opaque external collaborator) error as transient by message content. This is
// locale-sensitive and is flagged as an open question: a structured error code
// from the provider would be preferable, but none is available.
var transientMessagePatterns = []string{
	"busy",
	"timeout",
	"timed out",
	"lock",
	"in use",
	"in-use",
	"insufficient storage",
	"service not running",
	"try again",
}

// IsTransientProviderError classifies an error from the snapshot provider (or
// another message-based external collaborator) as retryable by substring match.
func IsTransientProviderError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range transientMessagePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// IsRetryableNetworkError classifies low-level network errors as retryable.
// Used by collaborators that shell out over a network-backed filesystem.
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	networkErrors := []string{
		"dial tcp",
		"timeout",
		"connection reset by peer",
		"connection refused",
		"network is unreachable",
		"connection timed out",
		"temporary failure in name resolution",
		"no route to host",
		"context deadline exceeded",
	}
	for _, netErr := range networkErrors {
		if strings.Contains(errStr, netErr) {
			return true
		}
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	return false
}

// WithRetry runs fn, retrying on errors classified retryable by isRetryable,
// with exponential backoff bounded by config. It is the generic building
// block behind the snapshot provider's Create retry contract.
func WithRetry[T any](ctx context.Context, logger ILoggerResetable, operation string, isRetryable func(error) bool, fn func() (T, error), config ...RetryConfig) (T, error) {
	retryConfig := DefaultSnapshotRetryConfig()
	if len(config) > 0 {
		retryConfig = config[0]
	}

	var lastErr error
	var zeroValue T

	if !retryConfig.Enabled {
		return fn()
	}

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 0 && logger != nil {
				logger.Log(LogInfo, fmt.Sprintf("retry succeeded for %s after %d attempts", operation, attempt))
			}
			return result, nil
		}

		lastErr = err

		if !isRetryable(err) {
			if logger != nil {
				logger.Log(LogError, fmt.Sprintf("non-retryable error in %s: %v", operation, err))
			}
			return zeroValue, err
		}

		if attempt == retryConfig.MaxRetries {
			break
		}

		delay := time.Duration(float64(retryConfig.InitialDelay) * math.Pow(retryConfig.BackoffMultiplier, float64(attempt)))
		if delay > retryConfig.MaxDelay {
			delay = retryConfig.MaxDelay
		}

		if logger != nil {
			logger.Log(LogWarning, fmt.Sprintf("transient error in %s (attempt %d/%d): %v. retrying in %v...",
				operation, attempt+1, retryConfig.MaxRetries+1, err, delay))
		}

		select {
		case <-ctx.Done():
			return zeroValue, ctx.Err()
		case <-time.After(delay):
		}
	}

	if logger != nil {
		logger.Log(LogError, fmt.Sprintf("retry exhausted for %s after %d attempts. final error: %v",
			operation, retryConfig.MaxRetries+1, lastErr))
	}

	return zeroValue, fmt.Errorf("%s failed after %d attempts: %w", operation, retryConfig.MaxRetries+1, lastErr)
}

// ChunkRetryBackoff computes the scheduler's per-chunk exponential backoff
// delay, per the scheduler's retry policy: base=5s, multiplier=2, max=120s.
func ChunkRetryBackoff(retryCount int, base, maxDelay time.Duration, multiplier float64) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := time.Duration(float64(base) * math.Pow(multiplier, float64(retryCount-1)))
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
