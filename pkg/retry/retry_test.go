package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorweave/errors"
)

func TestSucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
	}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExhaustsAttempts(t *testing.T) {
	attempts := 0
	boom := errors.New("broker unreachable")
	err := Do(context.Background(), Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	}, func() error {
		attempts++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}

func TestFatalErrorStopsImmediately(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
	}, func() error {
		attempts++
		return errors.WrapFatal(errors.ErrConfiguration, "probe", "Do", "config check")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, Config{
		MaxAttempts:  100,
		InitialDelay: 5 * time.Millisecond,
		AddJitter:    false,
	}, func() error {
		attempts++
		return errors.New("still down")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, attempts, 100)
}

func TestZeroConfigRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return errors.New("nope")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
