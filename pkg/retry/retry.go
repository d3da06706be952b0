// Package retry bounds the retries of report sink writes. Pipeline stages
// talking to the coordinator or the node never retry.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/bardlex/guardreport/pkg/errors"
)

// Config holds retry configuration. The delay doubles after every failed
// attempt up to MaxDelay.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// SinkConfig returns the retry configuration for sink writes. A one-shot
// run should not hang on a sink, so attempts stay low.
func SinkConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Jitter:      true,
	}
}

// Do calls fn until it succeeds, fails with a non-retryable error, runs out
// of attempts or ctx ends. Exhausted attempts return the last error as a
// sink error carrying the attempt count. A nil config means SinkConfig.
func Do(ctx context.Context, config *Config, fn func() error) error {
	if config == nil {
		config = SinkConfig()
	}
	attempts := max(config.MaxAttempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(config.backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err = fn(); err == nil || !errors.IsRetryable(err) {
			return err
		}
	}

	return errors.Wrap(err, errors.ErrorTypeSink, "retry", "giving up").
		WithContext("attempts", attempts)
}

// backoff is the wait after the given failed attempt, counted from zero
func (c *Config) backoff(attempt int) time.Duration {
	delay := c.BaseDelay
	for i := 0; i < attempt && delay < c.MaxDelay; i++ {
		delay *= 2
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}

	if c.Jitter && delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/10 + 1))
	}
	return delay
}
