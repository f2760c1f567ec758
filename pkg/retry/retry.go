// Package retry provides exponential backoff for connection attempts to
// external collaborators, the broker first among them. Fatal and invalid
// errors per the pipeline taxonomy are never retried; everything else is
// worth another attempt.
package retry

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/c360/sensorweave/errors"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Config provides retry configuration
type Config struct {
	// MaxAttempts caps the total tries; values below 1 mean a single try.
	MaxAttempts int
	// InitialDelay before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
	// Multiplier grows the delay between attempts, typically 2.0.
	Multiplier float64
	// AddJitter randomizes delays to avoid synchronized reconnects.
	AddJitter bool
}

// DefaultConfig returns sensible defaults for connection retries
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
}

// Do executes fn with exponential backoff. It stops early on success, on
// context cancellation, or when fn returns an error classified fatal or
// invalid.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg.applyDefaults()

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.IsFatal(lastErr) || errors.IsInvalid(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if cfg.AddJitter {
			randMu.Lock()
			wait += time.Duration(randSource.Int63n(int64(delay)/2 + 1))
			randMu.Unlock()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
