// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package collector

import (
	"fmt"
	"strconv"
	"time"

	"github.com/evakv0th/universe-test-monorepo/internal/events"
	"github.com/evakv0th/universe-test-monorepo/internal/storage"
)

// MapFacebook flattens a decoded facebook event into its storage rows.
// A mapping failure (unparseable timestamp or purchase amount) is a
// processing failure for the whole event: nothing is persisted.
func MapFacebook(ev *events.FacebookEvent) (storage.BaseEvent, storage.FacebookRecord, error) {
	ts, err := time.Parse(time.RFC3339, ev.Timestamp)
	if err != nil {
		return storage.BaseEvent{}, storage.FacebookRecord{}, fmt.Errorf("parse timestamp %q: %w", ev.Timestamp, err)
	}

	base := storage.BaseEvent{
		ID:          ev.EventID,
		Timestamp:   ts,
		Source:      string(ev.Source),
		FunnelStage: string(ev.FunnelStage),
		EventType:   ev.EventType,
	}

	rec := storage.FacebookRecord{
		UserID:         ev.Data.User.UserID,
		UserName:       ev.Data.User.Name,
		UserAge:        ev.Data.User.Age,
		UserGender:     ev.Data.User.Gender,
		UserCity:       ev.Data.User.Location.City,
		UserCountry:    ev.Data.User.Location.Country,
		EngagementType: string(ev.FunnelStage),
	}

	switch {
	case ev.Data.Engagement.Top != nil:
		top := ev.Data.Engagement.Top
		at, err := parseActionTime(top.ActionTime)
		if err != nil {
			return storage.BaseEvent{}, storage.FacebookRecord{}, err
		}
		rec.ActionTime = at
		rec.Referrer = &top.Referrer
		rec.VideoID = top.VideoID
	case ev.Data.Engagement.Bottom != nil:
		bottom := ev.Data.Engagement.Bottom
		amount, err := parsePurchaseAmount(bottom.PurchaseAmount)
		if err != nil {
			return storage.BaseEvent{}, storage.FacebookRecord{}, err
		}
		rec.AdID = &bottom.AdID
		rec.CampaignID = &bottom.CampaignID
		rec.ClickPosition = &bottom.ClickPosition
		rec.Device = &bottom.Device
		rec.Browser = &bottom.Browser
		rec.PurchaseAmount = amount
	default:
		return storage.BaseEvent{}, storage.FacebookRecord{}, fmt.Errorf("event %s has no engagement variant", ev.EventID)
	}

	return base, rec, nil
}

// MapTiktok flattens a decoded tiktok event into its storage rows.
func MapTiktok(ev *events.TiktokEvent) (storage.BaseEvent, storage.TiktokRecord, error) {
	ts, err := time.Parse(time.RFC3339, ev.Timestamp)
	if err != nil {
		return storage.BaseEvent{}, storage.TiktokRecord{}, fmt.Errorf("parse timestamp %q: %w", ev.Timestamp, err)
	}

	base := storage.BaseEvent{
		ID:          ev.EventID,
		Timestamp:   ts,
		Source:      string(ev.Source),
		FunnelStage: string(ev.FunnelStage),
		EventType:   ev.EventType,
	}

	rec := storage.TiktokRecord{
		UserID:         ev.Data.User.UserID,
		Username:       ev.Data.User.Username,
		Followers:      ev.Data.User.Followers,
		EngagementType: string(ev.FunnelStage),
	}

	switch {
	case ev.Data.Engagement.Top != nil:
		top := ev.Data.Engagement.Top
		rec.WatchTime = &top.WatchTime
		rec.PercentageWatched = &top.PercentageWatched
		rec.Device = &top.Device
		rec.Country = &top.Country
		rec.VideoID = &top.VideoID
	case ev.Data.Engagement.Bottom != nil:
		bottom := ev.Data.Engagement.Bottom
		at, err := parseActionTime(bottom.ActionTime)
		if err != nil {
			return storage.BaseEvent{}, storage.TiktokRecord{}, err
		}
		amount, err := parsePurchaseAmount(bottom.PurchaseAmount)
		if err != nil {
			return storage.BaseEvent{}, storage.TiktokRecord{}, err
		}
		rec.ActionTime = at
		rec.ProfileID = bottom.ProfileID
		rec.PurchasedItem = bottom.PurchasedItem
		rec.PurchaseAmount = amount
	default:
		return storage.BaseEvent{}, storage.TiktokRecord{}, fmt.Errorf("event %s has no engagement variant", ev.EventID)
	}

	return base, rec, nil
}

func parseActionTime(raw string) (*time.Time, error) {
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("parse actionTime %q: %w", raw, err)
	}
	return &at, nil
}

// parsePurchaseAmount converts the optional numeric-string purchase
// amount. An absent amount stays absent; it is never coerced to zero.
func parsePurchaseAmount(raw *string) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	v, err := strconv.ParseFloat(*raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse purchaseAmount %q: %w", *raw, err)
	}
	return &v, nil
}
