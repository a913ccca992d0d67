// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package events

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const facebookTopJSON = `{
	"eventId": "fb-1",
	"timestamp": "2026-08-01T12:00:00Z",
	"source": "facebook",
	"funnelStage": "top",
	"eventType": "ad.view",
	"data": {
		"user": {
			"userId": "7f9c24e5-2c31-43f4-9a34-1b157b2c0a85",
			"name": "Ann",
			"age": 29,
			"gender": "female",
			"location": {"country": "US", "city": "Austin"}
		},
		"engagement": {
			"actionTime": "2026-08-01T11:59:58Z",
			"referrer": "newsfeed",
			"videoId": null
		}
	}
}`

const tiktokBottomJSON = `{
	"eventId": "tt-1",
	"timestamp": "2026-08-01T12:00:00Z",
	"source": "tiktok",
	"funnelStage": "bottom",
	"eventType": "purchase",
	"data": {
		"user": {"userId": "u-9", "username": "creator", "followers": 1200},
		"engagement": {
			"actionTime": "2026-08-01T11:58:00Z",
			"profileId": null,
			"purchasedItem": "ring light",
			"purchaseAmount": "79.99"
		}
	}
}`

func TestParseEventFacebookTop(t *testing.T) {
	ev, err := ParseEvent(json.RawMessage(facebookTopJSON))
	require.NoError(t, err)
	require.NotNil(t, ev.Facebook)
	assert.Nil(t, ev.Tiktok)

	assert.Equal(t, SourceFacebook, ev.Source())
	assert.Equal(t, "fb-1", ev.EventID())
	assert.Equal(t, StageTop, ev.FunnelStage())
	assert.Equal(t, "ad.view", ev.EventType())

	require.NotNil(t, ev.Facebook.Data.Engagement.Top)
	assert.Nil(t, ev.Facebook.Data.Engagement.Bottom)
	assert.Equal(t, "newsfeed", ev.Facebook.Data.Engagement.Top.Referrer)
	assert.Nil(t, ev.Facebook.Data.Engagement.Top.VideoID)

	ts, err := ev.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, 2026, ts.Year())
}

func TestParseEventTiktokBottom(t *testing.T) {
	ev, err := ParseEvent(json.RawMessage(tiktokBottomJSON))
	require.NoError(t, err)
	require.NotNil(t, ev.Tiktok)

	require.NotNil(t, ev.Tiktok.Data.Engagement.Bottom)
	bottom := ev.Tiktok.Data.Engagement.Bottom
	assert.Nil(t, bottom.ProfileID)
	require.NotNil(t, bottom.PurchaseAmount)
	assert.Equal(t, "79.99", *bottom.PurchaseAmount)
}

func TestParseEventUnknownSource(t *testing.T) {
	_, err := ParseEvent(json.RawMessage(`{"source": "snapchat"}`))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "source", verrs[0].Field)
}

func TestParseEventFieldErrors(t *testing.T) {
	raw := `{
		"eventId": "fb-2",
		"timestamp": "2026-08-01T12:00:00Z",
		"source": "facebook",
		"funnelStage": "top",
		"eventType": "ad.view",
		"data": {
			"user": {
				"userId": "not-a-uuid",
				"name": "",
				"age": -4,
				"gender": "other",
				"location": {"country": "US", "city": "Austin"}
			},
			"engagement": {
				"actionTime": "2026-08-01T11:59:58Z",
				"referrer": "sidebar"
			}
		}
	}`

	_, err := ParseEvent(json.RawMessage(raw))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)

	fields := make(map[string]string)
	for _, fe := range verrs {
		fields[fe.Field] = fe.Message
	}
	assert.Contains(t, fields, "data.user.userId")
	assert.Contains(t, fields, "data.user.name")
	assert.Contains(t, fields, "data.user.age")
	assert.Contains(t, fields, "data.user.gender")
	assert.Contains(t, fields, "data.engagement.referrer")
}

func TestParseEventRejectsWrongStageEventType(t *testing.T) {
	raw := `{
		"eventId": "tt-2",
		"timestamp": "2026-08-01T12:00:00Z",
		"source": "tiktok",
		"funnelStage": "top",
		"eventType": "purchase",
		"data": {
			"user": {"userId": "u-1", "username": "a", "followers": 5},
			"engagement": {
				"watchTime": 12.5,
				"percentageWatched": 80,
				"device": "iOS",
				"country": "DE",
				"videoId": "v-1"
			}
		}
	}`

	_, err := ParseEvent(json.RawMessage(raw))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "eventType", verrs[0].Field)
}

func TestParseEventRejectsBadPurchaseAmount(t *testing.T) {
	raw := `{
		"eventId": "fb-3",
		"timestamp": "2026-08-01T12:00:00Z",
		"source": "facebook",
		"funnelStage": "bottom",
		"eventType": "checkout.complete",
		"data": {
			"user": {
				"userId": "7f9c24e5-2c31-43f4-9a34-1b157b2c0a85",
				"name": "Bo",
				"age": 41,
				"gender": "male",
				"location": {"country": "US", "city": "Reno"}
			},
			"engagement": {
				"adId": "ad-1",
				"campaignId": "cmp-1",
				"clickPosition": "center",
				"device": "mobile",
				"browser": "Chrome",
				"purchaseAmount": "lots"
			}
		}
	}`

	_, err := ParseEvent(json.RawMessage(raw))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "data.engagement.purchaseAmount", verrs[0].Field)
}

func TestParseEventMissingEngagement(t *testing.T) {
	raw := `{
		"eventId": "fb-4",
		"timestamp": "2026-08-01T12:00:00Z",
		"source": "facebook",
		"funnelStage": "top",
		"eventType": "ad.view",
		"data": {
			"user": {
				"userId": "7f9c24e5-2c31-43f4-9a34-1b157b2c0a85",
				"name": "Cy",
				"age": 33,
				"gender": "non-binary",
				"location": {"country": "US", "city": "Boise"}
			}
		}
	}`

	_, err := ParseEvent(json.RawMessage(raw))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.NotEmpty(t, verrs)
	assert.Equal(t, "data.engagement", verrs[0].Field)
}

func TestParseBatchPartitionsAndKeepsOrder(t *testing.T) {
	body := []byte("[" + facebookTopJSON + `, {"source": "facebook"}, ` + tiktokBottomJSON + "]")

	valid, invalid := ParseBatch(body)
	require.Len(t, valid, 2)
	require.Len(t, invalid, 1)
	assert.Equal(t, "fb-1", valid[0].EventID())
	assert.Equal(t, "tt-1", valid[1].EventID())
	assert.NotEmpty(t, invalid[0].Errors)
}

func TestParseBatchAcceptsSingleObject(t *testing.T) {
	valid, invalid := ParseBatch([]byte(facebookTopJSON))
	require.Len(t, valid, 1)
	assert.Empty(t, invalid)
}

func TestParseBatchGarbageBody(t *testing.T) {
	valid, invalid := ParseBatch([]byte("not json at all"))
	assert.Empty(t, valid)
	require.Len(t, invalid, 1)
}

func TestEventMarshalRoundTrip(t *testing.T) {
	ev, err := ParseEvent(json.RawMessage(tiktokBottomJSON))
	require.NoError(t, err)

	out, err := json.Marshal(ev)
	require.NoError(t, err)

	again, err := ParseEvent(out)
	require.NoError(t, err)
	assert.Equal(t, ev.EventID(), again.EventID())
	assert.Equal(t, ev.EventType(), again.EventType())
}

func TestEventTypesForMatrix(t *testing.T) {
	assert.Contains(t, EventTypesFor(SourceFacebook, StageTop), "page.like")
	assert.Contains(t, EventTypesFor(SourceFacebook, StageBottom), "checkout.complete")
	assert.Contains(t, EventTypesFor(SourceTiktok, StageTop), "share")
	assert.Contains(t, EventTypesFor(SourceTiktok, StageBottom), "follow")
	assert.Nil(t, EventTypesFor("snapchat", StageTop))
}
