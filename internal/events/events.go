// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Source identifies the platform an event originated from.
type Source string

const (
	// SourceFacebook indicates the event came from Facebook.
	SourceFacebook Source = "facebook"
	// SourceTiktok indicates the event came from TikTok.
	SourceTiktok Source = "tiktok"
)

// KnownSources returns every source the pipeline ingests.
// Stream names and durable consumer names are derived from these.
func KnownSources() []Source {
	return []Source{SourceFacebook, SourceTiktok}
}

// Valid reports whether s is a recognized source.
func (s Source) Valid() bool {
	return s == SourceFacebook || s == SourceTiktok
}

// FunnelStage is the coarse lifecycle position of an event:
// top (awareness) or bottom (conversion).
type FunnelStage string

const (
	// StageTop is the awareness stage.
	StageTop FunnelStage = "top"
	// StageBottom is the conversion stage.
	StageBottom FunnelStage = "bottom"
)

// Valid reports whether f is a recognized funnel stage.
func (f FunnelStage) Valid() bool {
	return f == StageTop || f == StageBottom
}

// Event type sets per source and funnel stage. The eventType of an
// incoming event must be drawn from the set matching its source and
// stage; anything else is rejected by the validator.
var (
	facebookTopEventTypes    = []string{"ad.view", "page.like", "comment", "video.view"}
	facebookBottomEventTypes = []string{"ad.click", "form.submission", "checkout.complete"}
	tiktokTopEventTypes      = []string{"video.view", "like", "share", "comment"}
	tiktokBottomEventTypes   = []string{"profile.visit", "purchase", "follow"}
)

// EventTypesFor returns the valid event types for a source and stage.
func EventTypesFor(source Source, stage FunnelStage) []string {
	switch {
	case source == SourceFacebook && stage == StageTop:
		return facebookTopEventTypes
	case source == SourceFacebook && stage == StageBottom:
		return facebookBottomEventTypes
	case source == SourceTiktok && stage == StageTop:
		return tiktokTopEventTypes
	case source == SourceTiktok && stage == StageBottom:
		return tiktokBottomEventTypes
	}
	return nil
}

// FacebookLocation is the city/country pair attached to a Facebook user.
type FacebookLocation struct {
	Country string `json:"country" validate:"required"`
	City    string `json:"city" validate:"required"`
}

// FacebookUser is the user payload of a Facebook event.
type FacebookUser struct {
	UserID   string           `json:"userId" validate:"required,uuid"`
	Name     string           `json:"name" validate:"required"`
	Age      int              `json:"age" validate:"required,gt=0"`
	Gender   string           `json:"gender" validate:"required,oneof=male female non-binary"`
	Location FacebookLocation `json:"location"`
}

// FacebookEngagementTop is the engagement payload of a top-funnel
// Facebook event.
type FacebookEngagementTop struct {
	ActionTime string  `json:"actionTime" validate:"required"`
	Referrer   string  `json:"referrer" validate:"required,oneof=newsfeed marketplace groups"`
	VideoID    *string `json:"videoId"`
}

// FacebookEngagementBottom is the engagement payload of a bottom-funnel
// Facebook event. PurchaseAmount, when set, is a numeric string.
type FacebookEngagementBottom struct {
	AdID           string  `json:"adId" validate:"required"`
	CampaignID     string  `json:"campaignId" validate:"required"`
	ClickPosition  string  `json:"clickPosition" validate:"required,oneof=top_left bottom_right center"`
	Device         string  `json:"device" validate:"required,oneof=mobile desktop"`
	Browser        string  `json:"browser" validate:"required,oneof=Chrome Firefox Safari"`
	PurchaseAmount *string `json:"purchaseAmount"`
}

// FacebookEngagement is the per-stage engagement union of a Facebook
// event. Exactly one variant is set after decoding; which one is
// determined by the event's funnel stage, never by probing keys.
type FacebookEngagement struct {
	Top    *FacebookEngagementTop    `json:"-" validate:"-"`
	Bottom *FacebookEngagementBottom `json:"-" validate:"-"`

	raw json.RawMessage
}

// UnmarshalJSON defers variant resolution: the funnel stage lives on the
// enclosing event, so the raw bytes are kept until resolve is called.
func (e *FacebookEngagement) UnmarshalJSON(b []byte) error {
	e.raw = append(e.raw[:0], b...)
	return nil
}

// MarshalJSON emits whichever variant is set.
func (e FacebookEngagement) MarshalJSON() ([]byte, error) {
	switch {
	case e.Top != nil:
		return json.Marshal(e.Top)
	case e.Bottom != nil:
		return json.Marshal(e.Bottom)
	case e.raw != nil:
		return e.raw, nil
	}
	return []byte("null"), nil
}

func (e *FacebookEngagement) resolve(stage FunnelStage) error {
	if e.Top != nil || e.Bottom != nil {
		return nil
	}
	if len(e.raw) == 0 {
		return &fieldPathError{field: "data.engagement", err: errMissingEngagement}
	}
	var err error
	switch stage {
	case StageTop:
		e.Top = &FacebookEngagementTop{}
		err = json.Unmarshal(e.raw, e.Top)
	case StageBottom:
		e.Bottom = &FacebookEngagementBottom{}
		err = json.Unmarshal(e.raw, e.Bottom)
	default:
		return fmt.Errorf("unknown funnel stage %q", stage)
	}
	if err != nil {
		return engagementDecodeError(err)
	}
	return nil
}

// FacebookData groups the user and engagement payloads.
type FacebookData struct {
	User       FacebookUser       `json:"user"`
	Engagement FacebookEngagement `json:"engagement"`
}

// FacebookEvent is the Facebook variant of the event union.
type FacebookEvent struct {
	EventID     string       `json:"eventId" validate:"required"`
	Timestamp   string       `json:"timestamp" validate:"required"`
	Source      Source       `json:"source" validate:"required,eq=facebook"`
	FunnelStage FunnelStage  `json:"funnelStage" validate:"required,oneof=top bottom"`
	EventType   string       `json:"eventType" validate:"required"`
	Data        FacebookData `json:"data"`
}

// TiktokUser is the user payload of a TikTok event.
type TiktokUser struct {
	UserID    string `json:"userId" validate:"required"`
	Username  string `json:"username" validate:"required"`
	Followers int    `json:"followers" validate:"gte=0"`
}

// TiktokEngagementTop is the engagement payload of a top-funnel TikTok
// event.
type TiktokEngagementTop struct {
	WatchTime         float64 `json:"watchTime" validate:"required,gt=0"`
	PercentageWatched float64 `json:"percentageWatched" validate:"gte=0,lte=100"`
	Device            string  `json:"device" validate:"required,oneof=Android iOS Desktop"`
	Country           string  `json:"country" validate:"required"`
	VideoID           string  `json:"videoId" validate:"required"`
}

// TiktokEngagementBottom is the engagement payload of a bottom-funnel
// TikTok event. PurchaseAmount, when set, is a numeric string.
type TiktokEngagementBottom struct {
	ActionTime     string  `json:"actionTime" validate:"required"`
	ProfileID      *string `json:"profileId"`
	PurchasedItem  *string `json:"purchasedItem"`
	PurchaseAmount *string `json:"purchaseAmount"`
}

// TiktokEngagement is the per-stage engagement union of a TikTok event.
type TiktokEngagement struct {
	Top    *TiktokEngagementTop    `json:"-" validate:"-"`
	Bottom *TiktokEngagementBottom `json:"-" validate:"-"`

	raw json.RawMessage
}

// UnmarshalJSON defers variant resolution until the funnel stage is known.
func (e *TiktokEngagement) UnmarshalJSON(b []byte) error {
	e.raw = append(e.raw[:0], b...)
	return nil
}

// MarshalJSON emits whichever variant is set.
func (e TiktokEngagement) MarshalJSON() ([]byte, error) {
	switch {
	case e.Top != nil:
		return json.Marshal(e.Top)
	case e.Bottom != nil:
		return json.Marshal(e.Bottom)
	case e.raw != nil:
		return e.raw, nil
	}
	return []byte("null"), nil
}

func (e *TiktokEngagement) resolve(stage FunnelStage) error {
	if e.Top != nil || e.Bottom != nil {
		return nil
	}
	if len(e.raw) == 0 {
		return &fieldPathError{field: "data.engagement", err: errMissingEngagement}
	}
	var err error
	switch stage {
	case StageTop:
		e.Top = &TiktokEngagementTop{}
		err = json.Unmarshal(e.raw, e.Top)
	case StageBottom:
		e.Bottom = &TiktokEngagementBottom{}
		err = json.Unmarshal(e.raw, e.Bottom)
	default:
		return fmt.Errorf("unknown funnel stage %q", stage)
	}
	if err != nil {
		return engagementDecodeError(err)
	}
	return nil
}

// TiktokData groups the user and engagement payloads.
type TiktokData struct {
	User       TiktokUser       `json:"user"`
	Engagement TiktokEngagement `json:"engagement"`
}

// TiktokEvent is the TikTok variant of the event union.
type TiktokEvent struct {
	EventID     string      `json:"eventId" validate:"required"`
	Timestamp   string      `json:"timestamp" validate:"required"`
	Source      Source      `json:"source" validate:"required,eq=tiktok"`
	FunnelStage FunnelStage `json:"funnelStage" validate:"required,oneof=top bottom"`
	EventType   string      `json:"eventType" validate:"required"`
	Data        TiktokData  `json:"data"`
}

// Event is the tagged union over the two source shapes. Exactly one of
// Facebook or Tiktok is non-nil on a decoded event. All downstream
// switching happens on the tag, never on structural guessing.
type Event struct {
	Facebook *FacebookEvent
	Tiktok   *TiktokEvent
}

// eventHead is the discriminant peek used to pick the union variant.
type eventHead struct {
	Source Source `json:"source"`
}

// UnmarshalJSON decodes the union by peeking at the source discriminant,
// then resolves the engagement variant from the funnel stage. Constraint
// validation (enums, ranges) is the validator's job, not decoding's.
func (e *Event) UnmarshalJSON(b []byte) error {
	var head eventHead
	if err := json.Unmarshal(b, &head); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	switch head.Source {
	case SourceFacebook:
		var fb FacebookEvent
		if err := json.Unmarshal(b, &fb); err != nil {
			return fmt.Errorf("decode facebook event: %w", err)
		}
		if fb.FunnelStage.Valid() {
			if err := fb.Data.Engagement.resolve(fb.FunnelStage); err != nil {
				return fmt.Errorf("decode facebook engagement: %w", err)
			}
		}
		e.Facebook = &fb
		e.Tiktok = nil
	case SourceTiktok:
		var tk TiktokEvent
		if err := json.Unmarshal(b, &tk); err != nil {
			return fmt.Errorf("decode tiktok event: %w", err)
		}
		if tk.FunnelStage.Valid() {
			if err := tk.Data.Engagement.resolve(tk.FunnelStage); err != nil {
				return fmt.Errorf("decode tiktok engagement: %w", err)
			}
		}
		e.Tiktok = &tk
		e.Facebook = nil
	default:
		return fmt.Errorf("unknown event source %q", head.Source)
	}
	return nil
}

// MarshalJSON delegates to the variant that is set.
func (e Event) MarshalJSON() ([]byte, error) {
	switch {
	case e.Facebook != nil:
		return json.Marshal(e.Facebook)
	case e.Tiktok != nil:
		return json.Marshal(e.Tiktok)
	}
	return nil, fmt.Errorf("event has no variant set")
}

// Source returns the union tag.
func (e *Event) Source() Source {
	if e.Facebook != nil {
		return SourceFacebook
	}
	if e.Tiktok != nil {
		return SourceTiktok
	}
	return ""
}

// EventID returns the per-event identifier supplied by the producer.
func (e *Event) EventID() string {
	if e.Facebook != nil {
		return e.Facebook.EventID
	}
	if e.Tiktok != nil {
		return e.Tiktok.EventID
	}
	return ""
}

// FunnelStage returns the event's funnel stage.
func (e *Event) FunnelStage() FunnelStage {
	if e.Facebook != nil {
		return e.Facebook.FunnelStage
	}
	if e.Tiktok != nil {
		return e.Tiktok.FunnelStage
	}
	return ""
}

// EventType returns the source-and-stage-specific event type.
func (e *Event) EventType() string {
	if e.Facebook != nil {
		return e.Facebook.EventType
	}
	if e.Tiktok != nil {
		return e.Tiktok.EventType
	}
	return ""
}

// Timestamp parses the event's ISO-8601 timestamp.
func (e *Event) Timestamp() (time.Time, error) {
	var raw string
	switch {
	case e.Facebook != nil:
		raw = e.Facebook.Timestamp
	case e.Tiktok != nil:
		raw = e.Tiktok.Timestamp
	default:
		return time.Time{}, fmt.Errorf("event has no variant set")
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event timestamp: %w", err)
	}
	return ts, nil
}
