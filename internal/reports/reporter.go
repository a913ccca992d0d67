// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package reports

import (
	"context"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/evakv0th/universe-test-monorepo/internal/events"
	"github.com/evakv0th/universe-test-monorepo/internal/logging"
	"github.com/evakv0th/universe-test-monorepo/internal/metrics"
	"github.com/evakv0th/universe-test-monorepo/internal/storage"
)

// RevenueGroup is aggregated revenue for one (eventType, funnelStage)
// pair.
type RevenueGroup struct {
	EventType   string  `json:"eventType"`
	FunnelStage string  `json:"funnelStage"`
	Revenue     float64 `json:"revenue"`
}

// RevenueReport is the revenue endpoint payload.
type RevenueReport struct {
	TotalRevenue float64        `json:"totalRevenue"`
	Groups       []RevenueGroup `json:"groups"`
}

// AgeGroup is one band of the age histogram.
type AgeGroup struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// FacebookDemographics aggregates facebook user attributes.
type FacebookDemographics struct {
	TotalUsers          int            `json:"totalUsers"`
	AgeDistribution     []AgeGroup     `json:"ageDistribution"`
	GenderDistribution  map[string]int `json:"genderDistribution"`
	CountryDistribution map[string]int `json:"countryDistribution"`
}

// TiktokDemographics aggregates tiktok user attributes.
type TiktokDemographics struct {
	TotalUsers          int            `json:"totalUsers"`
	TotalFollowers      int64          `json:"totalFollowers"`
	CountryDistribution map[string]int `json:"countryDistribution"`
	DeviceDistribution  map[string]int `json:"deviceDistribution"`
}

// DemographicsReport is the demographics endpoint payload. Only the
// requested sources are present.
type DemographicsReport struct {
	Facebook *FacebookDemographics `json:"facebook,omitempty"`
	Tiktok   *TiktokDemographics   `json:"tiktok,omitempty"`
}

// Reporter answers the three analytics queries from the report store.
type Reporter struct {
	store  storage.ReportStore
	logger zerolog.Logger
}

// NewReporter creates a reporter over store.
func NewReporter(store storage.ReportStore) *Reporter {
	return &Reporter{
		store:  store,
		logger: logging.With().Str("component", "reporter").Logger(),
	}
}

// EventStats returns event counts grouped by event type, funnel stage
// and source within the query range.
func (r *Reporter) EventStats(ctx context.Context, q EventStatsQuery) ([]storage.EventStatRow, error) {
	timer := prometheus.NewTimer(metrics.EventStatsLatency)
	defer timer.ObserveDuration()

	if errs := validateQuery(q); errs != nil {
		return nil, errs
	}
	tr, errs := parseRange(q.From, q.To)
	if errs != nil {
		return nil, errs
	}

	rows, err := r.store.EventStats(ctx, storage.EventStatFilter{
		Range:       tr,
		Source:      q.Source,
		FunnelStage: q.FunnelStage,
		EventType:   q.EventType,
	})
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	if rows == nil {
		rows = []storage.EventStatRow{}
	}

	r.logger.Debug().Int("groups", len(rows)).Msg("event stats computed")
	return rows, nil
}

// Revenue sums purchase amounts of bottom-funnel conversion events in
// range, grouped by event type and funnel stage.
func (r *Reporter) Revenue(ctx context.Context, q RevenueQuery) (*RevenueReport, error) {
	timer := prometheus.NewTimer(metrics.RevenueStatsLatency)
	defer timer.ObserveDuration()

	if errs := validateQuery(q); errs != nil {
		return nil, errs
	}
	tr, errs := parseRange(q.From, q.To)
	if errs != nil {
		return nil, errs
	}

	var rows []storage.RevenueRow
	if q.Source == "" || q.Source == string(events.SourceFacebook) {
		fb, err := r.store.FacebookRevenueRows(ctx, tr, q.CampaignID)
		if err != nil {
			return nil, fmt.Errorf("facebook revenue rows: %w", err)
		}
		rows = append(rows, fb...)
	}
	if q.Source == "" || q.Source == string(events.SourceTiktok) {
		tk, err := r.store.TiktokRevenueRows(ctx, tr)
		if err != nil {
			return nil, fmt.Errorf("tiktok revenue rows: %w", err)
		}
		rows = append(rows, tk...)
	}

	return reduceRevenue(rows), nil
}

// reduceRevenue folds raw purchase rows into per-group sums plus a
// grand total.
func reduceRevenue(rows []storage.RevenueRow) *RevenueReport {
	type key struct{ eventType, funnelStage string }
	sums := make(map[key]float64)
	for _, row := range rows {
		sums[key{row.EventType, row.FunnelStage}] += row.PurchaseAmount
	}

	report := &RevenueReport{Groups: []RevenueGroup{}}
	for k, sum := range sums {
		report.TotalRevenue += sum
		report.Groups = append(report.Groups, RevenueGroup{
			EventType:   k.eventType,
			FunnelStage: k.funnelStage,
			Revenue:     sum,
		})
	}
	sort.Slice(report.Groups, func(i, j int) bool {
		a, b := report.Groups[i], report.Groups[j]
		if a.EventType != b.EventType {
			return a.EventType < b.EventType
		}
		return a.FunnelStage < b.FunnelStage
	})
	return report
}

// Demographics aggregates user attributes per source within range.
func (r *Reporter) Demographics(ctx context.Context, q DemographicsQuery) (*DemographicsReport, error) {
	timer := prometheus.NewTimer(metrics.DemographicsLatency)
	defer timer.ObserveDuration()

	if errs := validateQuery(q); errs != nil {
		return nil, errs
	}
	tr, errs := parseRange(q.From, q.To)
	if errs != nil {
		return nil, errs
	}

	report := &DemographicsReport{}
	if q.Source == "" || q.Source == string(events.SourceFacebook) {
		rows, err := r.store.FacebookDemographicRows(ctx, tr)
		if err != nil {
			return nil, fmt.Errorf("facebook demographic rows: %w", err)
		}
		report.Facebook = reduceFacebookDemographics(rows)
	}
	if q.Source == "" || q.Source == string(events.SourceTiktok) {
		rows, err := r.store.TiktokDemographicRows(ctx, tr)
		if err != nil {
			return nil, fmt.Errorf("tiktok demographic rows: %w", err)
		}
		report.Tiktok = reduceTiktokDemographics(rows)
	}
	return report, nil
}

func reduceFacebookDemographics(rows []storage.FacebookDemographicRow) *FacebookDemographics {
	d := &FacebookDemographics{
		AgeDistribution:     []AgeGroup{},
		GenderDistribution:  map[string]int{},
		CountryDistribution: map[string]int{},
	}
	ages := make(map[string]int)
	seen := make(map[string]bool)
	for _, row := range rows {
		if seen[row.UserID] {
			continue
		}
		seen[row.UserID] = true
		d.TotalUsers++
		ages[ageBucket(row.Age)]++
		d.GenderDistribution[row.Gender]++
		d.CountryDistribution[row.Country]++
	}
	for _, band := range ageBands {
		if n := ages[band]; n > 0 {
			d.AgeDistribution = append(d.AgeDistribution, AgeGroup{Range: band, Count: n})
		}
	}
	return d
}

func reduceTiktokDemographics(rows []storage.TiktokDemographicRow) *TiktokDemographics {
	d := &TiktokDemographics{
		CountryDistribution: map[string]int{},
		DeviceDistribution:  map[string]int{},
	}
	// per-user followers: one user appears once per event, keep the max
	followers := make(map[string]int)
	for _, row := range rows {
		if cur, ok := followers[row.UserID]; !ok || row.Followers > cur {
			followers[row.UserID] = row.Followers
		}
		if row.Country != "" {
			d.CountryDistribution[row.Country]++
		}
		if row.Device != "" {
			d.DeviceDistribution[row.Device]++
		}
	}
	d.TotalUsers = len(followers)
	for _, f := range followers {
		d.TotalFollowers += int64(f)
	}
	return d
}

// ageBands lists the histogram bands in report order. Band labels use
// an en dash, matching the published report format.
var ageBands = []string{"13–17", "18–24", "25–34", "35–44", "45–54", "55–64", "65+", "Unknown"}

// ageBucket maps an age to its histogram band. Ages outside the tracked
// bands land in "Unknown".
func ageBucket(age int) string {
	switch {
	case age >= 13 && age <= 17:
		return "13–17"
	case age >= 18 && age <= 24:
		return "18–24"
	case age >= 25 && age <= 34:
		return "25–34"
	case age >= 35 && age <= 44:
		return "35–44"
	case age >= 45 && age <= 54:
		return "45–54"
	case age >= 55 && age <= 64:
		return "55–64"
	case age >= 65:
		return "65+"
	}
	return "Unknown"
}
