// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evakv0th/universe-test-monorepo/internal/events"
	"github.com/evakv0th/universe-test-monorepo/internal/reports"
	"github.com/evakv0th/universe-test-monorepo/internal/storage"
	"github.com/evakv0th/universe-test-monorepo/internal/stream"
)

type fakePublisher struct {
	summary stream.PublishSummary
	err     error
	gotBody []byte
}

func (f *fakePublisher) Publish(_ context.Context, body []byte) (stream.PublishSummary, error) {
	f.gotBody = body
	return f.summary, f.err
}

type fakeReporter struct {
	stats     []storage.EventStatRow
	statsErr  error
	lastQuery reports.EventStatsQuery
}

func (f *fakeReporter) EventStats(_ context.Context, q reports.EventStatsQuery) ([]storage.EventStatRow, error) {
	f.lastQuery = q
	return f.stats, f.statsErr
}

func (f *fakeReporter) Revenue(_ context.Context, _ reports.RevenueQuery) (*reports.RevenueReport, error) {
	return &reports.RevenueReport{Groups: []reports.RevenueGroup{}}, nil
}

func (f *fakeReporter) Demographics(_ context.Context, _ reports.DemographicsQuery) (*reports.DemographicsReport, error) {
	return &reports.DemographicsReport{}, nil
}

func newTestServer(p eventPublisher, r reportSource, h HealthFunc) *Server {
	return NewServer(DefaultConfig(), p, r, h)
}

func TestRootAnswersPlainText(t *testing.T) {
	srv := newTestServer(&fakePublisher{}, &fakeReporter{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gateway is up", rec.Body.String())
}

func TestPublishReturnsSummary(t *testing.T) {
	pub := &fakePublisher{summary: stream.PublishSummary{Valid: 2, Invalid: 1}}
	srv := newTestServer(pub, &fakeReporter{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("[]"))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Processed 2 valid and 1 invalid events.", rec.Body.String())
}

func TestPublishAllInvalidIsClientError(t *testing.T) {
	pub := &fakePublisher{
		summary: stream.PublishSummary{Invalid: 3},
		err:     stream.ErrNoValidEvents,
	}
	srv := newTestServer(pub, &fakeReporter{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("[{}]"))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No valid events in payload.\n", rec.Body.String())
}

func TestPublishBrokerFailureIsServerError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders available")}
	srv := newTestServer(pub, &fakeReporter{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("[]"))
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEventStatsPassesQueryParams(t *testing.T) {
	rep := &fakeReporter{stats: []storage.EventStatRow{
		{EventType: "ad.view", FunnelStage: "top", Source: "facebook", Count: 7},
	}}
	srv := newTestServer(&fakePublisher{}, rep, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/reports/events?from=2026-08-01&to=2026-08-02&source=facebook&funnelStage=top&eventType=ad.view", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "facebook", rep.lastQuery.Source)
	assert.Equal(t, "top", rep.lastQuery.FunnelStage)
	assert.Equal(t, "ad.view", rep.lastQuery.EventType)

	var rows []storage.EventStatRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0].Count)
}

func TestReportValidationFailureRendersFieldErrors(t *testing.T) {
	rep := &fakeReporter{statsErr: events.ValidationErrors{
		{Field: "source", Message: "must be one of: facebook, tiktok"},
	}}
	srv := newTestServer(&fakePublisher{}, rep, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports/events?from=2026-08-01&to=2026-08-02", nil)
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp validationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Validation failed", resp.Message)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "source", resp.Errors[0].Field)
}

func TestHealthReportsDependencies(t *testing.T) {
	health := func(context.Context) map[string]string {
		return map[string]string{
			"nats":               "ok",
			"database":           "ok",
			"collector:facebook": "running",
			"collector:tiktok":   "running",
		}
	}
	srv := newTestServer(&fakePublisher{}, &fakeReporter{}, health)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthDegradedIsUnavailable(t *testing.T) {
	health := func(context.Context) map[string]string {
		return map[string]string{"nats": "disconnected"}
	}
	srv := newTestServer(&fakePublisher{}, &fakeReporter{}, health)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpointExposed(t *testing.T) {
	srv := newTestServer(&fakePublisher{}, &fakeReporter{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
