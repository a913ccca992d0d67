// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

// Package storage defines the persistence contract consumed by the
// collectors and the reporter. The write path stores one base event row
// plus one source-specific row per processed envelope; the read path
// exposes the grouped and filtered row sets the aggregator works on.
package storage

import (
	"context"
	"time"
)

// BaseEvent is the common row every processed event produces. ID is the
// producer-supplied eventId, which keys the row and makes redelivered
// messages idempotent.
type BaseEvent struct {
	ID          string
	Timestamp   time.Time
	Source      string
	FunnelStage string
	EventType   string
}

// FacebookRecord is the flattened facebook user+engagement row.
// Pointer fields belong to one engagement variant each; a nil pointer
// means the field was not part of the matched variant.
type FacebookRecord struct {
	UserID         string
	UserName       string
	UserAge        int
	UserGender     string
	UserCity       string
	UserCountry    string
	EngagementType string
	ActionTime     *time.Time
	Referrer       *string
	VideoID        *string
	AdID           *string
	CampaignID     *string
	ClickPosition  *string
	Device         *string
	Browser        *string
	PurchaseAmount *float64
}

// TiktokRecord is the flattened tiktok user+engagement row.
type TiktokRecord struct {
	UserID            string
	Username          string
	Followers         int
	EngagementType    string
	WatchTime         *float64
	PercentageWatched *float64
	Device            *string
	Country           *string
	VideoID           *string
	ActionTime        *time.Time
	ProfileID         *string
	PurchasedItem     *string
	PurchaseAmount    *float64
}

// EventStore is the write contract used by the collectors. Each create
// is one logical operation: the base row and the source row are
// persisted together or not at all.
type EventStore interface {
	CreateFacebookEvent(ctx context.Context, base BaseEvent, record FacebookRecord) error
	CreateTiktokEvent(ctx context.Context, base BaseEvent, record TiktokRecord) error
}

// TimeRange is a closed [GTE, LTE] timestamp filter.
type TimeRange struct {
	GTE time.Time
	LTE time.Time
}

// EventStatFilter narrows the grouped event count query.
type EventStatFilter struct {
	Range       TimeRange
	Source      string // optional
	FunnelStage string // optional
	EventType   string // optional
}

// EventStatRow is one group of the (eventType, funnelStage, source)
// count aggregation.
type EventStatRow struct {
	EventType   string `json:"eventType"`
	FunnelStage string `json:"funnelStage"`
	Source      string `json:"source"`
	Count       int64  `json:"count"`
}

// RevenueRow is one bottom-funnel row with a recorded purchase amount.
type RevenueRow struct {
	EventType      string
	FunnelStage    string
	PurchaseAmount float64
}

// FacebookDemographicRow carries the user fields the facebook
// demographics report aggregates.
type FacebookDemographicRow struct {
	UserID  string
	Age     int
	Gender  string
	Country string
}

// TiktokDemographicRow carries the user fields the tiktok demographics
// report aggregates.
type TiktokDemographicRow struct {
	UserID    string
	Followers int
	Device    string
	Country   string
}

// ReportStore is the read contract consumed by the aggregator.
type ReportStore interface {
	// EventStats returns counts grouped by (eventType, funnelStage, source).
	EventStats(ctx context.Context, filter EventStatFilter) ([]EventStatRow, error)

	// FacebookRevenueRows returns bottom-funnel facebook rows with a
	// non-null purchase amount, optionally restricted to one campaign.
	FacebookRevenueRows(ctx context.Context, r TimeRange, campaignID string) ([]RevenueRow, error)

	// TiktokRevenueRows returns bottom-funnel tiktok rows with a
	// non-null purchase amount.
	TiktokRevenueRows(ctx context.Context, r TimeRange) ([]RevenueRow, error)

	// FacebookDemographicRows returns the facebook user rows in range.
	FacebookDemographicRows(ctx context.Context, r TimeRange) ([]FacebookDemographicRow, error)

	// TiktokDemographicRows returns the tiktok user rows in range.
	TiktokDemographicRows(ctx context.Context, r TimeRange) ([]TiktokDemographicRow, error)
}
