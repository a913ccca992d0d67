// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

// Package collector implements the durable consume-and-persist side of
// the pipeline: one supervised collector per source, at-least-once
// delivery, ack strictly after persistence.
package collector
