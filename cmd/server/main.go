package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drone-flight/registry/internal/api"
	"drone-flight/registry/internal/config"
	"drone-flight/registry/internal/logging"
	"drone-flight/registry/internal/metrics"
	"drone-flight/registry/internal/routes"
	"drone-flight/registry/internal/workers"

	"golang.org/x/sync/errgroup"
)

// @title Drone Flight Registry API
// @version 1.0
// @description Flight registration ledger, validation proxy and agent gateway.
// @host localhost:8080
// @BasePath /
func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "flightreg: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	if err := logging.Init(cfg.AppEnv, cfg.LogLevel); err != nil {
		return err
	}
	defer logging.Close()

	logging.Info("Flight registry starting up",
		"environment", cfg.AppEnv,
		"chain_id", cfg.ChainID,
		"contract", cfg.Ledger.Address.Hex(),
		"ledger_store", cfg.Ledger.Store,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsReg := metrics.NewMetricsRegistry()

	deps, err := api.InitDependencies(ctx, cfg, metricsReg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	upSince := time.Now()
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.RegisterRoutes(deps, upSince),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if deps.StreamReady() {
		indexer := workers.NewEventIndexWorker("indexer", cfg.Redis.Group, deps.Services.Stream, deps.Repo.Index, metricsReg)
		monitor := workers.NewStreamMonitor(deps.Services.Stream)
		g.Go(func() error { return indexer.Start(gctx, 2) })
		g.Go(func() error {
			monitor.Start(gctx, 30*time.Second)
			return nil
		})
	} else {
		logging.Info("Event index pipeline disabled; set both redis and postgres to enable it")
	}

	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
