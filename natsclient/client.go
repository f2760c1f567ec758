// Package natsclient manages the NATS connection used to export results
// off-device. The pipeline itself never rides on NATS; only egress sinks
// publish through this client, so connection loss degrades export without
// touching the reactive timeline.
package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/pkg/retry"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds connection parameters
type Config struct {
	// URL of the NATS server, e.g. "nats://localhost:4222"
	URL string `json:"url" yaml:"url"`
	// Name identifies this client to the server
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// ConnectTimeout bounds the initial connection attempt
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
	// MaxReconnects limits reconnection attempts; -1 means unlimited
	MaxReconnects int `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
}

// DefaultConfig returns sensible defaults for an edge deployment
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		Name:           "sensorweave",
		ConnectTimeout: 5 * time.Second,
		MaxReconnects:  -1,
	}
}

// Client wraps a NATS connection with status tracking
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *nats.Conn
	status ConnectionStatus
}

// NewClient creates a client; Connect must be called before publishing
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With("component", "natsclient"),
		status: StatusDisconnected,
	}
}

// Connect establishes the connection, retrying with backoff. Fails when
// the server stays unreachable through every attempt.
func (c *Client) Connect(ctx context.Context) error {
	return retry.Do(ctx, retry.DefaultConfig(), func() error {
		return c.connectOnce()
	})
}

func (c *Client) connectOnce() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.Name(c.cfg.Name),
		nats.Timeout(c.cfg.ConnectTimeout),
		nats.MaxReconnects(c.cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(StatusReconnecting)
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.setStatus(StatusConnected)
			c.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setStatus(StatusClosed)
		}),
	}

	conn, err := nats.Connect(c.cfg.URL, opts...)
	if err != nil {
		return errors.WrapTransient(err, "natsclient", "Connect", "server connection")
	}

	c.conn = conn
	c.status = StatusConnected
	c.logger.Info("NATS connected", "url", conn.ConnectedUrl())
	return nil
}

// setStatus updates status from connection callbacks, which run on NATS
// library goroutines.
func (c *Client) setStatus(s ConnectionStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Publish sends data to a subject. Fire-and-forget; the client buffers
// during reconnects up to the library's pending limits.
func (c *Client) Publish(subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "natsclient", "Publish", "connection check")
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "natsclient", "Publish", "publish")
	}
	return nil
}

// Close drains and closes the connection
func (c *Client) Close(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("NATS drain failed, closing hard", "error", err)
		c.conn.Close()
	}
	c.conn = nil
	c.status = StatusClosed
}
