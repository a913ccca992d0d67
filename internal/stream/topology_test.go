// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package stream

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evakv0th/universe-test-monorepo/internal/events"
)

type fakeStreamAPI struct {
	existing  map[string]bool
	created   []jetstream.StreamConfig
	createErr error
}

func (f *fakeStreamAPI) Stream(_ context.Context, name string) (jetstream.Stream, error) {
	if f.existing[name] {
		return nil, nil
	}
	return nil, jetstream.ErrStreamNotFound
}

func (f *fakeStreamAPI) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, cfg)
	f.existing[cfg.Name] = true
	return nil, nil
}

func newFakeStreamAPI() *fakeStreamAPI {
	return &fakeStreamAPI{existing: map[string]bool{}}
}

func TestEnsureStreamCreatesAbsentStream(t *testing.T) {
	api := newFakeStreamAPI()
	topo := &Topology{js: api}

	require.NoError(t, topo.EnsureStream(context.Background(), events.SourceFacebook))

	require.Len(t, api.created, 1)
	cfg := api.created[0]
	assert.Equal(t, "facebook", cfg.Name)
	assert.Equal(t, []string{"facebook"}, cfg.Subjects)
	assert.Equal(t, jetstream.FileStorage, cfg.Storage)
}

func TestEnsureStreamIsIdempotent(t *testing.T) {
	api := newFakeStreamAPI()
	topo := &Topology{js: api}

	require.NoError(t, topo.EnsureStream(context.Background(), events.SourceTiktok))
	require.NoError(t, topo.EnsureStream(context.Background(), events.SourceTiktok))
	assert.Len(t, api.created, 1)
}

func TestEnsureStreamToleratesCreateRace(t *testing.T) {
	api := newFakeStreamAPI()
	api.createErr = jetstream.ErrStreamNameAlreadyInUse
	topo := &Topology{js: api}

	require.NoError(t, topo.EnsureStream(context.Background(), events.SourceFacebook))
}

func TestEnsureAllCoversEverySource(t *testing.T) {
	api := newFakeStreamAPI()
	topo := &Topology{js: api}

	require.NoError(t, topo.EnsureAll(context.Background()))
	assert.Len(t, api.created, len(events.KnownSources()))
}
