// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package events

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Envelope is the wire message published onto a source stream.
// EventsChunkID groups every envelope accepted from one inbound batch;
// ID is unique per envelope. Both are generated at publish time and
// never supplied by the caller.
type Envelope struct {
	EventsChunkID string `json:"eventsChunkId"`
	ID            string `json:"id"`
	Source        Source `json:"source"`
	Data          *Event `json:"data"`
}

// EncodeEnvelope serializes an envelope for the broker.
func EncodeEnvelope(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope deserializes a broker message body. A failure here is
// a decode error in the collector's taxonomy: the message is logged,
// counted, and left unacknowledged.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("decode envelope: missing event data")
	}
	return &env, nil
}
