// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

// Command server runs the full pipeline in one process: the ingest
// gateway, the per-source collectors and the report endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/evakv0th/universe-test-monorepo/internal/api"
	"github.com/evakv0th/universe-test-monorepo/internal/collector"
	"github.com/evakv0th/universe-test-monorepo/internal/config"
	"github.com/evakv0th/universe-test-monorepo/internal/events"
	"github.com/evakv0th/universe-test-monorepo/internal/logging"
	"github.com/evakv0th/universe-test-monorepo/internal/reports"
	"github.com/evakv0th/universe-test-monorepo/internal/storage/postgres"
	"github.com/evakv0th/universe-test-monorepo/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(cfg.Logging)

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional single-binary mode with an in-process broker.
	var embedded *stream.EmbeddedServer
	if cfg.EmbeddedNATS.Enabled {
		es, err := stream.NewEmbeddedServer(cfg.EmbeddedNATS.Server)
		if err != nil {
			return err
		}
		embedded = es
		cfg.NATS.URL = es.ClientURL()
		logging.Info().Str("url", cfg.NATS.URL).Msg("embedded NATS server started")
	}

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.RunMigration(ctx); err != nil {
		return err
	}
	store := postgres.NewStore(db)

	conn := stream.NewConn(cfg.NATS)
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	topo := stream.NewTopology(conn)
	if err := topo.EnsureAll(ctx); err != nil {
		return err
	}

	publisher := stream.NewPublisher(conn, topo)
	reporter := reports.NewReporter(store)

	collectors := make(map[events.Source]*collector.Collector)
	supervisor := suture.NewSimple("collectors")
	for _, source := range events.KnownSources() {
		c := collector.New(source, conn, topo, store, cfg.Collector)
		collectors[source] = c
		supervisor.Add(c)
	}

	health := func(ctx context.Context) map[string]string {
		checks := make(map[string]string)
		if conn.IsConnected() {
			checks["nats"] = "ok"
		} else {
			checks["nats"] = "disconnected"
		}
		if err := db.Ready(ctx); err != nil {
			checks["database"] = "unavailable"
		} else {
			checks["database"] = "ok"
		}
		for source, c := range collectors {
			checks["collector:"+string(source)] = string(c.State())
		}
		return checks
	}

	server := api.NewServer(cfg.Server, publisher, reporter, health)

	supervisorErr := supervisor.ServeBackground(ctx)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case err := <-supervisorErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := conn.Close(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("NATS drain failed")
	}
	if embedded != nil {
		if err := embedded.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("embedded NATS shutdown failed")
		}
	}

	logging.Info().Msg("shutdown complete")
	return nil
}
