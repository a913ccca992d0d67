// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package reports

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/evakv0th/universe-test-monorepo/internal/events"
	"github.com/evakv0th/universe-test-monorepo/internal/storage"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// EventStatsQuery filters the grouped event count report. From and To
// are calendar dates; the range covers both days in full.
type EventStatsQuery struct {
	From        string `json:"from" validate:"required"`
	To          string `json:"to" validate:"required"`
	Source      string `json:"source" validate:"omitempty,oneof=facebook tiktok"`
	FunnelStage string `json:"funnelStage" validate:"omitempty,oneof=top bottom"`
	EventType   string `json:"eventType" validate:"omitempty"`
}

// RevenueQuery filters the revenue report. CampaignID only narrows the
// facebook side.
type RevenueQuery struct {
	From       string `json:"from" validate:"required"`
	To         string `json:"to" validate:"required"`
	Source     string `json:"source" validate:"omitempty,oneof=facebook tiktok"`
	CampaignID string `json:"campaignId" validate:"omitempty"`
}

// DemographicsQuery filters the demographics report.
type DemographicsQuery struct {
	From   string `json:"from" validate:"required"`
	To     string `json:"to" validate:"required"`
	Source string `json:"source" validate:"omitempty,oneof=facebook tiktok"`
}

// parseRange validates and normalizes a from/to pair into a closed
// timestamp range: from expands to the start of its day, to expands to
// the end of its day.
func parseRange(from, to string) (storage.TimeRange, events.ValidationErrors) {
	var errs events.ValidationErrors

	gte, err := parseDay(from)
	if err != nil {
		errs = append(errs, events.FieldError{Field: "from", Message: "must be a valid ISO-8601 date"})
	}
	lte, err := parseDay(to)
	if err != nil {
		errs = append(errs, events.FieldError{Field: "to", Message: "must be a valid ISO-8601 date"})
	}
	if len(errs) > 0 {
		return storage.TimeRange{}, errs
	}

	if gte.After(lte) {
		return storage.TimeRange{}, events.ValidationErrors{
			{Field: "from", Message: "must not be after to"},
		}
	}

	return storage.TimeRange{
		GTE: gte,
		LTE: lte.Add(24*time.Hour - time.Millisecond),
	}, nil
}

// parseDay accepts a plain date or a full timestamp and truncates to
// the UTC day.
func parseDay(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// validateQuery runs struct validation and converts failures into the
// field-level error list the API layer renders.
func validateQuery(q any) events.ValidationErrors {
	err := validate.Struct(q)
	if err == nil {
		return nil
	}
	var errs events.ValidationErrors
	var verrs validator.ValidationErrors
	switch {
	case isValidationErrors(err, &verrs):
		for _, fe := range verrs {
			errs = append(errs, events.FieldError{
				Field:   fe.Field(),
				Message: messageForQueryTag(fe),
			})
		}
	default:
		errs = append(errs, events.FieldError{Field: "query", Message: err.Error()})
	}
	return errs
}

func isValidationErrors(err error, out *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*out = verrs
	}
	return ok
}

func messageForQueryTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "is invalid"
}
