// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/evakv0th/universe-test-monorepo/internal/events"
	"github.com/evakv0th/universe-test-monorepo/internal/logging"
	"github.com/evakv0th/universe-test-monorepo/internal/metrics"
	"github.com/evakv0th/universe-test-monorepo/internal/storage"
	"github.com/evakv0th/universe-test-monorepo/internal/stream"
)

// State is the collector's lifecycle position, exposed for health checks.
type State string

const (
	// StateDisconnected means the collector has not reached the broker yet.
	StateDisconnected State = "disconnected"
	// StateSubscribing means the durable subscription is being established.
	StateSubscribing State = "subscribing"
	// StateRunning means messages are being consumed.
	StateRunning State = "running"
	// StateDraining means a shutdown is letting in-flight work finish.
	StateDraining State = "draining"
	// StateFailed means subscription retries were exhausted.
	StateFailed State = "failed"
)

// Config holds the tunables of one collector.
type Config struct {
	// AckWait is how long the broker waits for an ack before redelivering.
	AckWait time.Duration `koanf:"ack_wait"`

	// MaxDeliver caps redeliveries of a poisoned message.
	MaxDeliver int `koanf:"max_deliver"`

	// SubscribeAttempts bounds the durable subscription retry loop.
	SubscribeAttempts int `koanf:"subscribe_attempts"`

	// SubscribeInterval is the fixed delay between subscription attempts.
	SubscribeInterval time.Duration `koanf:"subscribe_interval"`
}

// DefaultConfig returns production defaults for a collector.
func DefaultConfig() Config {
	return Config{
		AckWait:           30 * time.Second,
		MaxDeliver:        10,
		SubscribeAttempts: 10,
		SubscribeInterval: time.Second,
	}
}

// messageIterator is the slice of jetstream.MessagesContext the consume
// loop needs.
type messageIterator interface {
	Next(opts ...jetstream.NextOpt) (jetstream.Msg, error)
	Stop()
}

// subscribeFunc establishes the durable subscription for one attempt.
type subscribeFunc func(ctx context.Context) (messageIterator, error)

// Collector consumes one source's stream through a durable consumer and
// persists every event before acknowledging it. It runs as a supervised
// service: transient errors restart it, exhausted subscription retries
// take the whole tree down.
type Collector struct {
	source events.Source
	conn   *stream.Conn
	topo   *stream.Topology
	store  storage.EventStore
	cfg    Config
	logger zerolog.Logger

	// subscribe overrides the JetStream subscription in tests.
	subscribe subscribeFunc

	mu    sync.RWMutex
	state State
}

// New creates a collector for source backed by store.
func New(source events.Source, conn *stream.Conn, topo *stream.Topology, store storage.EventStore, cfg Config) *Collector {
	return &Collector{
		source: source,
		conn:   conn,
		topo:   topo,
		store:  store,
		cfg:    cfg,
		logger: logging.With().Str("component", "collector").Str("source", string(source)).Logger(),
		state:  StateDisconnected,
	}
}

// String names the collector for supervisor logs.
func (c *Collector) String() string {
	return string(c.source) + "-collector"
}

// State returns the collector's current lifecycle state.
func (c *Collector) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Collector) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Serve implements suture.Service. It connects, ensures the stream and
// durable consumer, then consumes until ctx is canceled. Per-message
// failures never stop the loop; only broker-level failures do.
func (c *Collector) Serve(ctx context.Context) error {
	c.setState(StateDisconnected)

	if !c.conn.IsConnected() {
		if err := c.conn.Connect(ctx); err != nil {
			return err
		}
	}
	if err := c.topo.EnsureStream(ctx, c.source); err != nil {
		return err
	}

	c.setState(StateSubscribing)
	it, err := c.subscribeWithRetry(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.setState(StateDraining)
			return ctx.Err()
		}
		c.setState(StateFailed)
		c.logger.Error().Err(err).
			Int("attempts", c.cfg.SubscribeAttempts).
			Msg("subscription retries exhausted")
		return errors.Join(
			fmt.Errorf("collector %s: subscribe failed after %d attempts: %w", c.source, c.cfg.SubscribeAttempts, err),
			suture.ErrTerminateSupervisorTree,
		)
	}

	// unblock Next when the supervisor cancels us
	stop := context.AfterFunc(ctx, it.Stop)
	defer stop()
	defer it.Stop()

	c.setState(StateRunning)
	c.logger.Info().Msg("collector running")

	for {
		msg, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, jetstream.ErrMsgIteratorClosed) {
				c.setState(StateDraining)
				c.logger.Info().Msg("collector draining")
				return ctx.Err()
			}
			return fmt.Errorf("next message on %s: %w", c.source, err)
		}
		c.handle(ctx, msg)
	}
}

// subscribeWithRetry attempts the durable subscription at a fixed
// interval until it succeeds or the attempt budget runs out.
func (c *Collector) subscribeWithRetry(ctx context.Context) (messageIterator, error) {
	sub := c.subscribe
	if sub == nil {
		sub = c.subscribeJetStream
	}

	var it messageIterator
	attempt := 0
	op := func() error {
		attempt++
		var err error
		it, err = sub(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("subscribe attempt failed")
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(c.cfg.SubscribeInterval),
			uint64(c.cfg.SubscribeAttempts-1),
		),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return it, nil
}

func (c *Collector) subscribeJetStream(ctx context.Context) (messageIterator, error) {
	js := c.conn.JetStream()
	if js == nil {
		return nil, fmt.Errorf("subscribe to %s: not connected", c.source)
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, string(c.source), jetstream.ConsumerConfig{
		Durable:    string(c.source) + "-durable",
		AckPolicy:  jetstream.AckExplicitPolicy,
		AckWait:    c.cfg.AckWait,
		MaxDeliver: c.cfg.MaxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("create durable consumer for %s: %w", c.source, err)
	}

	msgs, err := cons.Messages()
	if err != nil {
		return nil, fmt.Errorf("open message iterator for %s: %w", c.source, err)
	}
	return msgs, nil
}

// handle processes one delivery. The ack happens only after the event is
// durably persisted; any earlier failure leaves the message unacked so
// the broker redelivers it.
func (c *Collector) handle(ctx context.Context, msg jetstream.Msg) {
	env, err := events.DecodeEnvelope(msg.Data())
	if err != nil {
		metrics.CollectorFailedEvents.WithLabelValues(string(c.source)).Inc()
		c.logger.Error().Err(err).Msg("failed to decode envelope")
		return
	}

	if err := c.persist(ctx, env); err != nil {
		metrics.CollectorFailedEvents.WithLabelValues(string(c.source)).Inc()
		c.logger.Error().Err(err).
			Str("eventId", env.ID).
			Str("eventType", env.Data.EventType()).
			Str("chunkId", env.EventsChunkID).
			Msg("failed to persist event")
		return
	}

	if err := msg.Ack(); err != nil {
		c.logger.Error().Err(err).
			Str("eventId", env.ID).
			Msg("failed to ack message")
		return
	}

	metrics.CollectorProcessedEvents.WithLabelValues(string(c.source)).Inc()
	c.logger.Info().
		Str("eventId", env.ID).
		Str("eventType", env.Data.EventType()).
		Str("chunkId", env.EventsChunkID).
		Msg("processed event")
}

func (c *Collector) persist(ctx context.Context, env *events.Envelope) error {
	ev := env.Data
	switch {
	case ev.Facebook != nil:
		base, rec, err := MapFacebook(ev.Facebook)
		if err != nil {
			return err
		}
		return c.store.CreateFacebookEvent(ctx, base, rec)
	case ev.Tiktok != nil:
		base, rec, err := MapTiktok(ev.Tiktok)
		if err != nil {
			return err
		}
		return c.store.CreateTiktokEvent(ctx, base, rec)
	}
	return fmt.Errorf("envelope %s has no event variant", env.ID)
}
