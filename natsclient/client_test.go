package natsclient

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorweave/errors"
)

func TestConnectionStatusString(t *testing.T) {
	cases := map[ConnectionStatus]string{
		StatusDisconnected:    "disconnected",
		StatusConnected:       "connected",
		StatusReconnecting:    "reconnecting",
		StatusClosed:          "closed",
		ConnectionStatus(127): "unknown",
	}
	for status, want := range cases {
		assert.Equal(t, want, status.String())
	}
}

func TestNewClientAppliesDefaults(t *testing.T) {
	c := NewClient(Config{}, nil)

	assert.Equal(t, nats.DefaultURL, c.cfg.URL)
	assert.Equal(t, 5*time.Second, c.cfg.ConnectTimeout)
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestPublishBeforeConnect(t *testing.T) {
	c := NewClient(DefaultConfig(), slog.Default())

	err := c.Publish("results", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotStarted))
	assert.True(t, errors.IsInvalid(err))
}

func TestConnectHonorsCancelledContext(t *testing.T) {
	c := NewClient(DefaultConfig(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestCloseWithoutConnectIsNoOp(t *testing.T) {
	c := NewClient(DefaultConfig(), slog.Default())

	c.Close(context.Background())
	c.Close(context.Background())
	assert.Equal(t, StatusDisconnected, c.Status())
}
