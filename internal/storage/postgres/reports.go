// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/evakv0th/universe-test-monorepo/internal/storage"
)

// EventStats returns counts grouped by (eventType, funnelStage, source)
// within the filter's time range, narrowed by the optional dimensions.
func (s *Store) EventStats(ctx context.Context, filter storage.EventStatFilter) ([]storage.EventStatRow, error) {
	var b strings.Builder
	b.WriteString(`
SELECT event_type, funnel_stage, source, COUNT(*)
FROM events
WHERE occurred_at >= $1 AND occurred_at <= $2`)
	args := []any{filter.Range.GTE, filter.Range.LTE}

	if filter.Source != "" {
		args = append(args, filter.Source)
		fmt.Fprintf(&b, " AND source = $%d", len(args))
	}
	if filter.FunnelStage != "" {
		args = append(args, filter.FunnelStage)
		fmt.Fprintf(&b, " AND funnel_stage = $%d", len(args))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		fmt.Fprintf(&b, " AND event_type = $%d", len(args))
	}
	b.WriteString(`
GROUP BY event_type, funnel_stage, source
ORDER BY event_type, funnel_stage, source`)

	rows, err := s.db.Pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query event stats: %w", err)
	}
	defer rows.Close()

	var out []storage.EventStatRow
	for rows.Next() {
		var r storage.EventStatRow
		if err := rows.Scan(&r.EventType, &r.FunnelStage, &r.Source, &r.Count); err != nil {
			return nil, fmt.Errorf("scan event stat row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FacebookRevenueRows returns bottom-funnel facebook rows carrying a
// purchase amount, optionally restricted to one campaign.
func (s *Store) FacebookRevenueRows(ctx context.Context, r storage.TimeRange, campaignID string) ([]storage.RevenueRow, error) {
	query := `
SELECT e.event_type, e.funnel_stage, f.purchase_amount
FROM events e
JOIN facebook_events f USING (event_id)
WHERE e.occurred_at >= $1 AND e.occurred_at <= $2
  AND e.funnel_stage = 'bottom'
  AND f.purchase_amount IS NOT NULL`
	args := []any{r.GTE, r.LTE}
	if campaignID != "" {
		args = append(args, campaignID)
		query += fmt.Sprintf(" AND f.campaign_id = $%d", len(args))
	}
	return s.revenueRows(ctx, query, args)
}

// TiktokRevenueRows returns bottom-funnel tiktok rows carrying a
// purchase amount.
func (s *Store) TiktokRevenueRows(ctx context.Context, r storage.TimeRange) ([]storage.RevenueRow, error) {
	query := `
SELECT e.event_type, e.funnel_stage, t.purchase_amount
FROM events e
JOIN tiktok_events t USING (event_id)
WHERE e.occurred_at >= $1 AND e.occurred_at <= $2
  AND e.funnel_stage = 'bottom'
  AND t.purchase_amount IS NOT NULL`
	return s.revenueRows(ctx, query, []any{r.GTE, r.LTE})
}

func (s *Store) revenueRows(ctx context.Context, query string, args []any) ([]storage.RevenueRow, error) {
	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query revenue rows: %w", err)
	}
	defer rows.Close()

	var out []storage.RevenueRow
	for rows.Next() {
		var r storage.RevenueRow
		if err := rows.Scan(&r.EventType, &r.FunnelStage, &r.PurchaseAmount); err != nil {
			return nil, fmt.Errorf("scan revenue row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FacebookDemographicRows returns the facebook user rows in range.
func (s *Store) FacebookDemographicRows(ctx context.Context, r storage.TimeRange) ([]storage.FacebookDemographicRow, error) {
	rows, err := s.db.Pool.Query(ctx, `
SELECT f.user_id, f.user_age, f.user_gender, f.user_country
FROM events e
JOIN facebook_events f USING (event_id)
WHERE e.occurred_at >= $1 AND e.occurred_at <= $2`, r.GTE, r.LTE)
	if err != nil {
		return nil, fmt.Errorf("query facebook demographics: %w", err)
	}
	defer rows.Close()

	var out []storage.FacebookDemographicRow
	for rows.Next() {
		var row storage.FacebookDemographicRow
		if err := rows.Scan(&row.UserID, &row.Age, &row.Gender, &row.Country); err != nil {
			return nil, fmt.Errorf("scan facebook demographic row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TiktokDemographicRows returns the tiktok user rows in range. Device
// and country belong to the top-funnel engagement only; absent values
// come back empty.
func (s *Store) TiktokDemographicRows(ctx context.Context, r storage.TimeRange) ([]storage.TiktokDemographicRow, error) {
	rows, err := s.db.Pool.Query(ctx, `
SELECT t.user_id, t.followers, COALESCE(t.device, ''), COALESCE(t.country, '')
FROM events e
JOIN tiktok_events t USING (event_id)
WHERE e.occurred_at >= $1 AND e.occurred_at <= $2`, r.GTE, r.LTE)
	if err != nil {
		return nil, fmt.Errorf("query tiktok demographics: %w", err)
	}
	defer rows.Close()

	var out []storage.TiktokDemographicRow
	for rows.Next() {
		var row storage.TiktokDemographicRow
		if err := rows.Scan(&row.UserID, &row.Followers, &row.Device, &row.Country); err != nil {
			return nil, fmt.Errorf("scan tiktok demographic row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
