// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

// Package stream owns the broker side of the pipeline: the NATS
// connection lifecycle (connect, drain-then-close), the per-source
// JetStream topology, the gateway publisher, and an optional embedded
// JetStream server.
package stream
