// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

// Package api is the HTTP surface: the ingest gateway, the report
// endpoints, readiness and Prometheus metrics.
package api
