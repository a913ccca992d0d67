// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package postgres

import (
	"context"
	"fmt"

	"github.com/evakv0th/universe-test-monorepo/internal/storage"
)

// Store implements the event write path and the report read path on
// Postgres. Writes key on event_id with ON CONFLICT DO NOTHING, which
// makes redelivered messages idempotent.
type Store struct {
	db *DB
}

// NewStore creates a store over db.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

const insertBaseSQL = `
INSERT INTO events (event_id, occurred_at, source, funnel_stage, event_type)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (event_id) DO NOTHING`

const insertFacebookSQL = `
INSERT INTO facebook_events (
    event_id, user_id, user_name, user_age, user_gender, user_city,
    user_country, engagement_type, action_time, referrer, video_id,
    ad_id, campaign_id, click_position, device, browser, purchase_amount
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (event_id) DO NOTHING`

const insertTiktokSQL = `
INSERT INTO tiktok_events (
    event_id, user_id, username, followers, engagement_type, watch_time,
    percentage_watched, device, country, video_id, action_time,
    profile_id, purchased_item, purchase_amount
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (event_id) DO NOTHING`

// CreateFacebookEvent persists the base row and the facebook row in one
// transaction.
func (s *Store) CreateFacebookEvent(ctx context.Context, base storage.BaseEvent, record storage.FacebookRecord) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertBaseSQL,
		base.ID, base.Timestamp, base.Source, base.FunnelStage, base.EventType,
	); err != nil {
		return fmt.Errorf("insert event %s: %w", base.ID, err)
	}

	if _, err := tx.Exec(ctx, insertFacebookSQL,
		base.ID, record.UserID, record.UserName, record.UserAge,
		record.UserGender, record.UserCity, record.UserCountry,
		record.EngagementType, record.ActionTime, record.Referrer,
		record.VideoID, record.AdID, record.CampaignID,
		record.ClickPosition, record.Device, record.Browser,
		record.PurchaseAmount,
	); err != nil {
		return fmt.Errorf("insert facebook event %s: %w", base.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit event %s: %w", base.ID, err)
	}
	return nil
}

// CreateTiktokEvent persists the base row and the tiktok row in one
// transaction.
func (s *Store) CreateTiktokEvent(ctx context.Context, base storage.BaseEvent, record storage.TiktokRecord) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertBaseSQL,
		base.ID, base.Timestamp, base.Source, base.FunnelStage, base.EventType,
	); err != nil {
		return fmt.Errorf("insert event %s: %w", base.ID, err)
	}

	if _, err := tx.Exec(ctx, insertTiktokSQL,
		base.ID, record.UserID, record.Username, record.Followers,
		record.EngagementType, record.WatchTime, record.PercentageWatched,
		record.Device, record.Country, record.VideoID, record.ActionTime,
		record.ProfileID, record.PurchasedItem, record.PurchaseAmount,
	); err != nil {
		return fmt.Errorf("insert tiktok event %s: %w", base.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit event %s: %w", base.ID, err)
	}
	return nil
}
