package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/strollia/questhunt/internal/adjudicator"
	"github.com/strollia/questhunt/internal/campaign"
	"github.com/strollia/questhunt/internal/config"
	"github.com/strollia/questhunt/internal/database"
	"github.com/strollia/questhunt/internal/distance"
	"github.com/strollia/questhunt/internal/ledger"
	"github.com/strollia/questhunt/internal/migrations"
	"github.com/strollia/questhunt/internal/places"
	"github.com/strollia/questhunt/internal/resolver"
	"github.com/strollia/questhunt/internal/selector"
	"github.com/strollia/questhunt/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tunables, err := config.LoadTunables(cfg.TunablesPath)
	if err != nil {
		return fmt.Errorf("loading tunables: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Providers ---
	placesClient := places.NewClient(cfg.PlacesBaseURL, cfg.PlacesAPIKey, cfg.ProviderRPS)
	router := distance.NewOSRMRouter(cfg.RoutingBaseURL, cfg.ProviderRPS)
	ai := adjudicator.NewClient(cfg.AdjudicatorURL, cfg.AdjudicatorKey, cfg.AdjudicatorModel, cfg.ProviderRPS)

	// --- Game core ---
	visits := ledger.New(db)
	sel := selector.New(tunables.Novelty, tunables.Weights)
	res := resolver.New(placesClient, sel, visits, tunables.Profiles(), logger)
	res.RelaxedHorizonDays = tunables.RelaxedHorizonDays
	engine := distance.NewEngine(router, logger)
	builder := campaign.NewBuilder(res, engine, ai, visits, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, server.Deps{
		Logger:              logger,
		DB:                  db,
		Store:               server.NewDocStore(db),
		Builder:             builder,
		Verifier:            ai,
		Ledger:              visits,
		Curve:               tunables.Curve,
		DefaultMaxDistanceM: tunables.DefaultMaxDistanceM,
		OperatorKeyHash:     cfg.OperatorKeyHash,
		SPADir:              cfg.SPADir,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
