// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/evakv0th/universe-test-monorepo/internal/events"
	"github.com/evakv0th/universe-test-monorepo/internal/logging"
	"github.com/evakv0th/universe-test-monorepo/internal/metrics"
)

// ErrNoValidEvents is returned when a publish batch contains no
// schema-conformant entries. It is a client error: nothing was
// published and nothing should be retried.
var ErrNoValidEvents = errors.New("no valid events in payload")

// jsPublisher is the slice of jetstream.JetStream the publisher needs.
type jsPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// PublishSummary reports the outcome of one publish batch.
type PublishSummary struct {
	Valid   int
	Invalid int
	ChunkID string
}

// String renders the gateway's plain-text response body.
func (s PublishSummary) String() string {
	return fmt.Sprintf("Processed %d valid and %d invalid events.", s.Valid, s.Invalid)
}

// Publisher validates inbound batches and fans valid events out onto
// the per-source streams, one broker message per event. Publishes run
// through a circuit breaker so a dead broker fails fast instead of
// stalling every request.
type Publisher struct {
	conn    *Conn
	topo    *Topology
	breaker *gobreaker.CircuitBreaker[*jetstream.PubAck]
	logger  zerolog.Logger

	// js overrides the connection's JetStream context in tests.
	js jsPublisher
}

// NewPublisher creates a publisher bound to conn and topo.
func NewPublisher(conn *Conn, topo *Topology) *Publisher {
	breaker := gobreaker.NewCircuitBreaker[*jetstream.PubAck](gobreaker.Settings{
		Name:        "gateway-publisher",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Publisher{
		conn:    conn,
		topo:    topo,
		breaker: breaker,
		logger:  logging.With().Str("component", "gateway").Logger(),
	}
}

func (p *Publisher) api() jsPublisher {
	if p.js != nil {
		return p.js
	}
	return p.conn.JetStream()
}

// Publish validates body (a single event object or an array), tags each
// valid event with the batch chunk id and a fresh envelope id, and
// publishes one message per event onto the stream named after its
// source. Validation order matches input order, and so does publication
// order. Zero valid events fails with ErrNoValidEvents before anything
// is published.
func (p *Publisher) Publish(ctx context.Context, body []byte) (PublishSummary, error) {
	valid, invalid := events.ParseBatch(body)

	for _, rejected := range invalid {
		metrics.GatewayFailedEvents.Inc()
		p.logger.Warn().Str("errors", rejected.Errors.Error()).Msg("event validation failed")
	}
	metrics.GatewaySuccessfulEvents.Add(float64(len(valid)))

	summary := PublishSummary{Valid: len(valid), Invalid: len(invalid)}
	p.logger.Info().
		Int("received", len(valid)+len(invalid)).
		Int("valid", len(valid)).
		Int("invalid", len(invalid)).
		Msg("received events")

	if len(valid) == 0 {
		return summary, ErrNoValidEvents
	}

	if p.js == nil && !p.conn.IsConnected() {
		if err := p.conn.Connect(ctx); err != nil {
			return summary, err
		}
		if err := p.topo.EnsureAll(ctx); err != nil {
			return summary, err
		}
	}

	summary.ChunkID = uuid.NewString()
	for _, ev := range valid {
		env := &events.Envelope{
			EventsChunkID: summary.ChunkID,
			ID:            uuid.NewString(),
			Source:        ev.Source(),
			Data:          ev,
		}
		if err := p.publishEnvelope(ctx, env); err != nil {
			return summary, err
		}
	}

	p.logger.Info().
		Int("published", summary.Valid).
		Str("chunkId", summary.ChunkID).
		Msg("published all valid events")
	return summary, nil
}

func (p *Publisher) publishEnvelope(ctx context.Context, env *events.Envelope) error {
	data, err := events.EncodeEnvelope(env)
	if err != nil {
		return err
	}

	msg := &nats.Msg{
		Subject: string(env.Source),
		Data:    data,
		Header:  nats.Header{},
	}
	// envelope id doubles as the broker dedup key
	msg.Header.Set(nats.MsgIdHdr, env.ID)

	_, err = p.breaker.Execute(func() (*jetstream.PubAck, error) {
		return p.api().PublishMsg(ctx, msg)
	})
	if err != nil {
		p.logger.Error().Err(err).
			Str("subject", string(env.Source)).
			Str("eventId", env.ID).
			Msg("failed to publish envelope")
		return fmt.Errorf("publish envelope %s to %s: %w", env.ID, env.Source, err)
	}

	metrics.RecordNATSPublish()
	p.logger.Info().
		Str("eventId", env.ID).
		Str("chunkId", env.EventsChunkID).
		Str("source", string(env.Source)).
		Msg("published event")
	return nil
}
