// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

// Package metrics exposes the Prometheus instrumentation for the
// pipeline: gateway validation counters, per-source collector counters,
// and report endpoint latency histograms.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewaySuccessfulEvents counts events that passed validation at
	// the gateway.
	GatewaySuccessfulEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_successful_events_total",
			Help: "Total number of successfully processed events",
		},
	)

	// GatewayFailedEvents counts events rejected by gateway validation.
	GatewayFailedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_failed_events_total",
			Help: "Total number of failed events due to validation",
		},
	)

	// CollectorProcessedEvents counts events persisted and acknowledged
	// by a collector, labeled by source so the two loops never contend
	// over one series.
	CollectorProcessedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_processed_events_total",
			Help: "Total number of successfully processed events by collector",
		},
		[]string{"source"},
	)

	// CollectorFailedEvents counts decode and persistence failures per
	// source. Failed messages stay unacknowledged, so a growing value
	// with a flat processed count signals a poison message.
	CollectorFailedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_failed_events_total",
			Help: "Total number of failed events by collector",
		},
		[]string{"source"},
	)

	// NATSPublishes counts envelopes successfully handed to JetStream.
	NATSPublishes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_publish_total",
			Help: "Total number of messages published to NATS JetStream",
		},
	)

	// Report endpoint latency histograms.
	reportBuckets = []float64{0.1, 0.5, 1, 2, 5}

	EventStatsLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reporter_event_stats_latency_seconds",
			Help:    "Latency for /reports/events",
			Buckets: reportBuckets,
		},
	)

	RevenueStatsLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reporter_revenue_stats_latency_seconds",
			Help:    "Latency for /reports/revenue",
			Buckets: reportBuckets,
		},
	)

	DemographicsLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reporter_demographics_latency_seconds",
			Help:    "Latency for /reports/demographics",
			Buckets: reportBuckets,
		},
	)
)

// RecordNATSPublish increments the publish counter.
func RecordNATSPublish() {
	NATSPublishes.Inc()
}
