// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/evakv0th/universe-test-monorepo/internal/logging"
)

// ConnConfig holds broker connection settings.
type ConnConfig struct {
	// URL is the NATS server connection URL.
	// Env: NATS_URL (default: nats://127.0.0.1:4222)
	URL string `koanf:"url"`

	// Name identifies this client on the server.
	Name string `koanf:"name"`

	// MaxReconnects bounds automatic reconnection attempts (-1 = unlimited).
	MaxReconnects int `koanf:"max_reconnects"`

	// ReconnectWait is the delay between reconnection attempts.
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// DefaultConnConfig returns production defaults for the broker connection.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		URL:           nats.DefaultURL,
		Name:          "universe-tracker",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Conn owns the broker connection for one process component. It is an
// explicitly constructed, explicitly passed connection context: the
// owner calls Connect once on its initialization path and Close on its
// shutdown path. Connect is reentrant but not built for competing
// concurrent initializers.
type Conn struct {
	mu     sync.RWMutex
	cfg    ConnConfig
	nc     *nats.Conn
	js     jetstream.JetStream
	logger zerolog.Logger
}

// NewConn creates an unconnected broker connection context.
func NewConn(cfg ConnConfig) *Conn {
	return &Conn{
		cfg:    cfg,
		logger: logging.With().Str("component", "nats").Logger(),
	}
}

// Connect establishes the broker connection if none is live. Calling it
// while connected is a logged no-op. Failures are logged with cause and
// returned; retry policy belongs to the caller.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nc != nil && !c.nc.IsClosed() {
		c.logger.Info().Msg("NATS connection already established")
		return nil
	}

	opts := []nats.Option{
		nats.Name(c.cfg.Name),
		nats.MaxReconnects(c.cfg.MaxReconnects),
		nats.ReconnectWait(c.cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(c.cfg.URL, opts...)
	if err != nil {
		c.logger.Error().Err(err).Str("url", c.cfg.URL).Msg("failed to connect to NATS")
		return fmt.Errorf("connect to NATS at %s: %w", c.cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("create JetStream context: %w", err)
	}

	c.nc = nc
	c.js = js
	c.logger.Info().Str("url", nc.ConnectedUrl()).Msg("connected to NATS")

	// honor caller cancellation that raced the dial
	select {
	case <-ctx.Done():
		nc.Close()
		c.nc, c.js = nil, nil
		return ctx.Err()
	default:
	}
	return nil
}

// IsConnected reports current liveness.
func (c *Conn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nc != nil && c.nc.IsConnected()
}

// JetStream returns the JetStream context, or nil when not connected.
func (c *Conn) JetStream() jetstream.JetStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.js
}

// Close performs the scoped drain-then-close: in-flight work is drained
// before the connection closes, bounded by ctx. Calling it twice, or on
// a connection that never opened, is a no-op.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	nc := c.nc
	c.nc = nil
	c.js = nil
	c.mu.Unlock()

	if nc == nil || nc.IsClosed() {
		return nil
	}

	done := make(chan struct{})
	nc.SetClosedHandler(func(*nats.Conn) {
		close(done)
	})

	c.logger.Info().Msg("draining NATS connection")
	if err := nc.Drain(); err != nil {
		nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}

	select {
	case <-done:
		c.logger.Info().Msg("NATS connection drained and closed")
		return nil
	case <-ctx.Done():
		nc.Close()
		return fmt.Errorf("drain NATS connection: %w", ctx.Err())
	}
}
