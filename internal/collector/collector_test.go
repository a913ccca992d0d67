// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package collector

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evakv0th/universe-test-monorepo/internal/events"
	"github.com/evakv0th/universe-test-monorepo/internal/logging"
	"github.com/evakv0th/universe-test-monorepo/internal/storage"
)

type fakeStore struct {
	facebook []storage.BaseEvent
	tiktok   []storage.BaseEvent
	err      error
}

func (s *fakeStore) CreateFacebookEvent(_ context.Context, base storage.BaseEvent, _ storage.FacebookRecord) error {
	if s.err != nil {
		return s.err
	}
	s.facebook = append(s.facebook, base)
	return nil
}

func (s *fakeStore) CreateTiktokEvent(_ context.Context, base storage.BaseEvent, _ storage.TiktokRecord) error {
	if s.err != nil {
		return s.err
	}
	s.tiktok = append(s.tiktok, base)
	return nil
}

type fakeMsg struct {
	data   []byte
	acked  bool
	ackErr error
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) { return nil, nil }
func (m *fakeMsg) Data() []byte                              { return m.data }
func (m *fakeMsg) Headers() nats.Header                      { return nil }
func (m *fakeMsg) Subject() string                           { return "facebook" }
func (m *fakeMsg) Reply() string                             { return "" }
func (m *fakeMsg) Ack() error {
	if m.ackErr != nil {
		return m.ackErr
	}
	m.acked = true
	return nil
}
func (m *fakeMsg) DoubleAck(context.Context) error  { return nil }
func (m *fakeMsg) Nak() error                       { return nil }
func (m *fakeMsg) NakWithDelay(time.Duration) error { return nil }
func (m *fakeMsg) InProgress() error                { return nil }
func (m *fakeMsg) Term() error                      { return nil }
func (m *fakeMsg) TermWithReason(string) error      { return nil }

func validEnvelopeBytes(t *testing.T) []byte {
	t.Helper()
	ev, err := events.ParseEvent([]byte(`{
		"eventId": "fb-20",
		"timestamp": "2026-08-01T12:00:00Z",
		"source": "facebook",
		"funnelStage": "top",
		"eventType": "ad.view",
		"data": {
			"user": {
				"userId": "7f9c24e5-2c31-43f4-9a34-1b157b2c0a85",
				"name": "Ann",
				"age": 29,
				"gender": "female",
				"location": {"country": "US", "city": "Austin"}
			},
			"engagement": {
				"actionTime": "2026-08-01T11:59:58Z",
				"referrer": "newsfeed"
			}
		}
	}`))
	require.NoError(t, err)

	data, err := events.EncodeEnvelope(&events.Envelope{
		EventsChunkID: "chunk-1",
		ID:            "env-1",
		Source:        events.SourceFacebook,
		Data:          ev,
	})
	require.NoError(t, err)
	return data
}

func newTestCollector(store storage.EventStore) *Collector {
	cfg := DefaultConfig()
	cfg.SubscribeAttempts = 3
	cfg.SubscribeInterval = time.Millisecond
	return New(events.SourceFacebook, nil, nil, store, cfg)
}

func TestHandleAcksAfterPersist(t *testing.T) {
	store := &fakeStore{}
	c := newTestCollector(store)
	msg := &fakeMsg{data: validEnvelopeBytes(t)}

	c.handle(context.Background(), msg)

	require.Len(t, store.facebook, 1)
	assert.Equal(t, "fb-20", store.facebook[0].ID)
	assert.True(t, msg.acked)
}

func TestHandleLogsEventIdentity(t *testing.T) {
	var buf bytes.Buffer
	store := &fakeStore{}
	c := newTestCollector(store)
	c.logger = logging.NewTestLogger(&buf).With().Str("source", "facebook").Logger()

	c.handle(context.Background(), &fakeMsg{data: validEnvelopeBytes(t)})

	out := buf.String()
	assert.Contains(t, out, `"eventId":"fb-20"`)
	assert.Contains(t, out, `"eventType":"ad.view"`)
	assert.Contains(t, out, `"source":"facebook"`)
}

func TestHandleLeavesDecodeFailureUnacked(t *testing.T) {
	store := &fakeStore{}
	c := newTestCollector(store)
	msg := &fakeMsg{data: []byte("not an envelope")}

	c.handle(context.Background(), msg)

	assert.Empty(t, store.facebook)
	assert.False(t, msg.acked)
}

func TestHandleLeavesPersistFailureUnacked(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	c := newTestCollector(store)
	msg := &fakeMsg{data: validEnvelopeBytes(t)}

	c.handle(context.Background(), msg)

	assert.False(t, msg.acked)
}

type fakeIterator struct{}

func (fakeIterator) Next(...jetstream.NextOpt) (jetstream.Msg, error) {
	return nil, jetstream.ErrMsgIteratorClosed
}
func (fakeIterator) Stop() {}

func TestSubscribeRetriesUntilSuccess(t *testing.T) {
	c := newTestCollector(&fakeStore{})

	attempts := 0
	c.subscribe = func(context.Context) (messageIterator, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("no responders")
		}
		return fakeIterator{}, nil
	}

	it, err := c.subscribeWithRetry(context.Background())
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, 3, attempts)
}

func TestSubscribeStopsAfterAttemptBudget(t *testing.T) {
	c := newTestCollector(&fakeStore{})

	attempts := 0
	c.subscribe = func(context.Context) (messageIterator, error) {
		attempts++
		return nil, errors.New("no responders")
	}

	_, err := c.subscribeWithRetry(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestCollectorStateTransitions(t *testing.T) {
	c := newTestCollector(&fakeStore{})
	assert.Equal(t, StateDisconnected, c.State())

	c.setState(StateRunning)
	assert.Equal(t, StateRunning, c.State())
}
