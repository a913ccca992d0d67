// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evakv0th/universe-test-monorepo/internal/events"
)

func strptr(s string) *string { return &s }

func facebookBottomEvent() *events.FacebookEvent {
	return &events.FacebookEvent{
		EventID:     "fb-10",
		Timestamp:   "2026-08-01T12:00:00Z",
		Source:      events.SourceFacebook,
		FunnelStage: events.StageBottom,
		EventType:   "checkout.complete",
		Data: events.FacebookData{
			User: events.FacebookUser{
				UserID: "7f9c24e5-2c31-43f4-9a34-1b157b2c0a85",
				Name:   "Ann",
				Age:    29,
				Gender: "female",
				Location: events.FacebookLocation{
					Country: "US",
					City:    "Austin",
				},
			},
			Engagement: events.FacebookEngagement{
				Bottom: &events.FacebookEngagementBottom{
					AdID:           "ad-7",
					CampaignID:     "cmp-3",
					ClickPosition:  "center",
					Device:         "mobile",
					Browser:        "Chrome",
					PurchaseAmount: strptr("149.50"),
				},
			},
		},
	}
}

func TestMapFacebookBottom(t *testing.T) {
	base, rec, err := MapFacebook(facebookBottomEvent())
	require.NoError(t, err)

	assert.Equal(t, "fb-10", base.ID)
	assert.Equal(t, "facebook", base.Source)
	assert.Equal(t, "bottom", base.FunnelStage)
	assert.Equal(t, "checkout.complete", base.EventType)
	assert.Equal(t, 2026, base.Timestamp.Year())

	assert.Equal(t, "Austin", rec.UserCity)
	assert.Equal(t, "bottom", rec.EngagementType)
	require.NotNil(t, rec.CampaignID)
	assert.Equal(t, "cmp-3", *rec.CampaignID)
	require.NotNil(t, rec.PurchaseAmount)
	assert.InDelta(t, 149.50, *rec.PurchaseAmount, 0.001)

	// top-variant fields stay unset
	assert.Nil(t, rec.Referrer)
	assert.Nil(t, rec.ActionTime)
}

func TestMapFacebookAbsentPurchaseAmountStaysAbsent(t *testing.T) {
	ev := facebookBottomEvent()
	ev.Data.Engagement.Bottom.PurchaseAmount = nil

	_, rec, err := MapFacebook(ev)
	require.NoError(t, err)
	assert.Nil(t, rec.PurchaseAmount)
}

func TestMapFacebookBadPurchaseAmountFails(t *testing.T) {
	ev := facebookBottomEvent()
	ev.Data.Engagement.Bottom.PurchaseAmount = strptr("12,99")

	_, _, err := MapFacebook(ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purchaseAmount")
}

func TestMapFacebookBadTimestampFails(t *testing.T) {
	ev := facebookBottomEvent()
	ev.Timestamp = "yesterday"

	_, _, err := MapFacebook(ev)
	require.Error(t, err)
}

func TestMapTiktokTop(t *testing.T) {
	ev := &events.TiktokEvent{
		EventID:     "tt-10",
		Timestamp:   "2026-08-02T09:30:00Z",
		Source:      events.SourceTiktok,
		FunnelStage: events.StageTop,
		EventType:   "video.view",
		Data: events.TiktokData{
			User: events.TiktokUser{UserID: "u-3", Username: "maker", Followers: 8000},
			Engagement: events.TiktokEngagement{
				Top: &events.TiktokEngagementTop{
					WatchTime:         42.5,
					PercentageWatched: 97,
					Device:            "Android",
					Country:           "PL",
					VideoID:           "v-77",
				},
			},
		},
	}

	base, rec, err := MapTiktok(ev)
	require.NoError(t, err)

	assert.Equal(t, "tiktok", base.Source)
	assert.Equal(t, 8000, rec.Followers)
	require.NotNil(t, rec.WatchTime)
	assert.InDelta(t, 42.5, *rec.WatchTime, 0.001)
	require.NotNil(t, rec.Device)
	assert.Equal(t, "Android", *rec.Device)

	// bottom-variant fields stay unset
	assert.Nil(t, rec.ActionTime)
	assert.Nil(t, rec.PurchaseAmount)
}

func TestMapTiktokBottom(t *testing.T) {
	ev := &events.TiktokEvent{
		EventID:     "tt-11",
		Timestamp:   "2026-08-02T10:00:00Z",
		Source:      events.SourceTiktok,
		FunnelStage: events.StageBottom,
		EventType:   "purchase",
		Data: events.TiktokData{
			User: events.TiktokUser{UserID: "u-4", Username: "seller", Followers: 100},
			Engagement: events.TiktokEngagement{
				Bottom: &events.TiktokEngagementBottom{
					ActionTime:     "2026-08-02T09:59:00Z",
					PurchasedItem:  strptr("tripod"),
					PurchaseAmount: strptr("25"),
				},
			},
		},
	}

	_, rec, err := MapTiktok(ev)
	require.NoError(t, err)
	require.NotNil(t, rec.ActionTime)
	require.NotNil(t, rec.PurchaseAmount)
	assert.InDelta(t, 25, *rec.PurchaseAmount, 0.001)
	assert.Nil(t, rec.ProfileID)
}
