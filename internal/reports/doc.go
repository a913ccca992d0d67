// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

// Package reports validates analytics queries and folds stored rows
// into the event-stats, revenue and demographics reports.
package reports
