// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

// Package events defines the marketing event schema shared by the
// gateway and the collectors: the facebook/tiktok tagged union, the
// strict field-level validator, and the Envelope wire format.
package events
