// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/evakv0th/universe-test-monorepo/internal/events"
)

// streamAPI is the slice of jetstream.JetStream the topology needs.
type streamAPI interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// Topology ensures the per-source durable streams exist before anything
// publishes to or subscribes from them. One stream per source; the
// stream name and its single subject are both the source name.
type Topology struct {
	conn *Conn

	// js overrides the connection's JetStream context in tests.
	js streamAPI
}

// NewTopology creates a topology manager bound to conn.
func NewTopology(conn *Conn) *Topology {
	return &Topology{conn: conn}
}

func (t *Topology) api() streamAPI {
	if t.js != nil {
		return t.js
	}
	return t.conn.JetStream()
}

// EnsureStream creates the stream for source if it is absent.
// Idempotent: an existing stream is a no-op, not an error. Creation
// failures propagate as connection-class errors; retrying is the
// caller's policy.
func (t *Topology) EnsureStream(ctx context.Context, source events.Source) error {
	js := t.api()
	if js == nil {
		return fmt.Errorf("ensure stream %s: not connected", source)
	}

	_, err := js.Stream(ctx, string(source))
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("look up stream %s: %w", source, err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      string(source),
		Subjects:  []string{string(source)},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		// lost a create race to another process; steady state is the same
		if errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
			return nil
		}
		return fmt.Errorf("create stream %s: %w", source, err)
	}
	return nil
}

// EnsureAll ensures a stream per known source.
func (t *Topology) EnsureAll(ctx context.Context) error {
	for _, source := range events.KnownSources() {
		if err := t.EnsureStream(ctx, source); err != nil {
			return err
		}
	}
	return nil
}
