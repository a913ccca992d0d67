// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/evakv0th/universe-test-monorepo/internal/events"
	"github.com/evakv0th/universe-test-monorepo/internal/reports"
	"github.com/evakv0th/universe-test-monorepo/internal/stream"
)

// validationResponse is the 400 body for field-level failures.
type validationResponse struct {
	Message string                  `json:"message"`
	Errors  events.ValidationErrors `json:"errors"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Gateway is up"))
}

// handlePublish ingests a batch. Partially valid batches succeed with a
// summary; fully invalid batches are a client error and publish nothing.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		http.Error(w, "gateway unavailable", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	summary, err := s.publisher.Publish(r.Context(), body)
	if err != nil {
		if errors.Is(err, stream.ErrNoValidEvents) {
			http.Error(w, "No valid events in payload.", http.StatusBadRequest)
			return
		}
		s.logger.Error().Err(err).Msg("publish failed")
		http.Error(w, "failed to publish events", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(summary.String()))
}

func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil {
		http.Error(w, "reporter unavailable", http.StatusServiceUnavailable)
		return
	}

	q := reports.EventStatsQuery{
		From:        r.URL.Query().Get("from"),
		To:          r.URL.Query().Get("to"),
		Source:      r.URL.Query().Get("source"),
		FunnelStage: r.URL.Query().Get("funnelStage"),
		EventType:   r.URL.Query().Get("eventType"),
	}

	rows, err := s.reporter.EventStats(r.Context(), q)
	if err != nil {
		s.reportError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil {
		http.Error(w, "reporter unavailable", http.StatusServiceUnavailable)
		return
	}

	q := reports.RevenueQuery{
		From:       r.URL.Query().Get("from"),
		To:         r.URL.Query().Get("to"),
		Source:     r.URL.Query().Get("source"),
		CampaignID: r.URL.Query().Get("campaignId"),
	}

	report, err := s.reporter.Revenue(r.Context(), q)
	if err != nil {
		s.reportError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDemographics(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil {
		http.Error(w, "reporter unavailable", http.StatusServiceUnavailable)
		return
	}

	q := reports.DemographicsQuery{
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
		Source: r.URL.Query().Get("source"),
	}

	report, err := s.reporter.Demographics(r.Context(), q)
	if err != nil {
		s.reportError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	checks := s.health(r.Context())
	status := http.StatusOK
	for _, state := range checks {
		if state != "ok" && state != "running" {
			status = http.StatusServiceUnavailable
			break
		}
	}
	s.writeJSON(w, status, checks)
}

// reportError maps reporter failures: field-level validation problems
// are the client's, everything else is ours.
func (s *Server) reportError(w http.ResponseWriter, err error) {
	var verrs events.ValidationErrors
	if errors.As(err, &verrs) {
		s.writeJSON(w, http.StatusBadRequest, validationResponse{
			Message: "Validation failed",
			Errors:  verrs,
		})
		return
	}
	s.logger.Error().Err(err).Msg("report query failed")
	http.Error(w, "failed to build report", http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
