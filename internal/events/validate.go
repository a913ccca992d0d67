// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package events

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// FieldError describes one violated constraint on one field.
// Field is the JSON path of the offending field, e.g. "data.user.age".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the ordered list of field errors produced by
// validating a single raw event. It implements error so callers can
// surface it through normal error returns.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		if fe.Field == "" {
			parts = append(parts, fe.Message)
			continue
		}
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

// InvalidEvent pairs a rejected raw payload with the errors that
// rejected it.
type InvalidEvent struct {
	Original json.RawMessage  `json:"original"`
	Errors   ValidationErrors `json:"errors"`
}

// validate is the shared validator instance. validator/v10 caches
// struct metadata, so a single instance is both safe and cheap.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names instead of Go struct field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// errMissingEngagement marks an event whose data.engagement key is
// absent or null while its funnel stage requires a payload.
var errMissingEngagement = errors.New("engagement payload missing")

// fieldPathError carries an explicit JSON path for decode failures that
// happen below a custom unmarshaler, where the encoder's own path
// tracking has been cut off.
type fieldPathError struct {
	field string
	err   error
}

func (e *fieldPathError) Error() string { return e.field + ": " + e.err.Error() }
func (e *fieldPathError) Unwrap() error { return e.err }

// engagementDecodeError attaches the engagement path to a variant
// decode failure.
func engagementDecodeError(err error) error {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return &fieldPathError{field: "data.engagement." + ute.Field, err: err}
	}
	return &fieldPathError{field: "data.engagement", err: err}
}

// ParseEvent validates a single raw value against the event union.
// It returns the typed event, or ValidationErrors describing every
// violated field. Ordinary malformed input never panics or produces a
// non-ValidationErrors error.
func ParseEvent(raw json.RawMessage) (*Event, error) {
	var head eventHead
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, ValidationErrors{{Field: "", Message: "payload is not a JSON object"}}
	}
	if !head.Source.Valid() {
		return nil, ValidationErrors{{Field: "source", Message: "must be one of facebook, tiktok"}}
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, ValidationErrors{decodeFieldError(err)}
	}

	var errs ValidationErrors
	switch {
	case ev.Facebook != nil:
		errs = validateFacebook(ev.Facebook)
	case ev.Tiktok != nil:
		errs = validateTiktok(ev.Tiktok)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &ev, nil
}

// ParseBatch accepts either a single raw event object or a JSON array
// of them and partitions the input into valid events and rejected
// entries, preserving input order within each partition. The batch is
// never atomic: one bad entry does not taint the others.
func ParseBatch(body []byte) ([]*Event, []InvalidEvent) {
	items := normalizeBatch(body)

	valid := make([]*Event, 0, len(items))
	invalid := make([]InvalidEvent, 0)
	for _, item := range items {
		ev, err := ParseEvent(item)
		if err != nil {
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				verrs = ValidationErrors{{Field: "", Message: err.Error()}}
			}
			invalid = append(invalid, InvalidEvent{Original: item, Errors: verrs})
			continue
		}
		valid = append(valid, ev)
	}
	return valid, invalid
}

// normalizeBatch turns the request body into a sequence of raw entries.
// A body that is not a JSON array is treated as a single entry.
func normalizeBatch(body []byte) []json.RawMessage {
	trimmed := strings.TrimLeftFunc(string(body), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err == nil {
			return items
		}
	}
	return []json.RawMessage{json.RawMessage(body)}
}

func validateFacebook(ev *FacebookEvent) ValidationErrors {
	errs := structErrors(ev, "")
	errs = append(errs, checkTimestamp(ev.Timestamp)...)
	errs = append(errs, checkEventType(SourceFacebook, ev.FunnelStage, ev.EventType)...)

	switch {
	case ev.Data.Engagement.Top != nil:
		errs = append(errs, structErrors(ev.Data.Engagement.Top, "data.engagement.")...)
	case ev.Data.Engagement.Bottom != nil:
		errs = append(errs, structErrors(ev.Data.Engagement.Bottom, "data.engagement.")...)
		errs = append(errs, checkPurchaseAmount(ev.Data.Engagement.Bottom.PurchaseAmount)...)
	}
	return errs
}

func validateTiktok(ev *TiktokEvent) ValidationErrors {
	errs := structErrors(ev, "")
	errs = append(errs, checkTimestamp(ev.Timestamp)...)
	errs = append(errs, checkEventType(SourceTiktok, ev.FunnelStage, ev.EventType)...)

	switch {
	case ev.Data.Engagement.Top != nil:
		errs = append(errs, structErrors(ev.Data.Engagement.Top, "data.engagement.")...)
	case ev.Data.Engagement.Bottom != nil:
		errs = append(errs, structErrors(ev.Data.Engagement.Bottom, "data.engagement.")...)
		errs = append(errs, checkPurchaseAmount(ev.Data.Engagement.Bottom.PurchaseAmount)...)
	}
	return errs
}

// structErrors runs tag validation and converts the result into field
// errors with JSON paths. The prefix replaces the root struct segment
// of the validator namespace.
func structErrors(v interface{}, prefix string) ValidationErrors {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrors{{Field: prefix, Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		out = append(out, FieldError{Field: prefix + path, Message: messageForTag(fe)})
	}
	return out
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "eq":
		return "must equal " + fe.Param()
	case "gt":
		if fe.Param() == "0" {
			return "must be a positive number"
		}
		return "must be greater than " + fe.Param()
	case "gte":
		if fe.Param() == "0" {
			return "must be a non-negative number"
		}
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	}
	return "failed " + fe.Tag() + " validation"
}

func checkTimestamp(raw string) ValidationErrors {
	if raw == "" {
		return nil // required is reported by tag validation
	}
	if _, err := time.Parse(time.RFC3339, raw); err != nil {
		return ValidationErrors{{Field: "timestamp", Message: "must be an ISO-8601 timestamp"}}
	}
	return nil
}

func checkEventType(source Source, stage FunnelStage, eventType string) ValidationErrors {
	if !stage.Valid() || eventType == "" {
		return nil
	}
	allowed := EventTypesFor(source, stage)
	for _, t := range allowed {
		if t == eventType {
			return nil
		}
	}
	return ValidationErrors{{
		Field: "eventType",
		Message: fmt.Sprintf("must be one of %s for %s-funnel %s events",
			strings.Join(allowed, ", "), stage, source),
	}}
}

func checkPurchaseAmount(raw *string) ValidationErrors {
	if raw == nil {
		return nil
	}
	amount, err := strconv.ParseFloat(*raw, 64)
	if err != nil || amount < 0 {
		return ValidationErrors{{
			Field:   "data.engagement.purchaseAmount",
			Message: "must be a non-negative numeric string",
		}}
	}
	return nil
}

// decodeFieldError maps a JSON decode failure to a field error with the
// most precise path available.
func decodeFieldError(err error) FieldError {
	var fpe *fieldPathError
	if errors.As(err, &fpe) {
		return FieldError{Field: fpe.field, Message: messageForDecode(fpe.err)}
	}
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return FieldError{Field: ute.Field, Message: "invalid type"}
	}
	return FieldError{Field: "", Message: "malformed event payload"}
}

func messageForDecode(err error) string {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		return "invalid type"
	}
	if errors.Is(err, errMissingEngagement) {
		return "required"
	}
	return "malformed payload"
}
