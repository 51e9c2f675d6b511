package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hapi-gw/hapi/internal/api"
	"github.com/hapi-gw/hapi/internal/bus"
	"github.com/hapi-gw/hapi/internal/config"
	hapicore "github.com/hapi-gw/hapi/internal/core"
	"github.com/hapi-gw/hapi/internal/corehandler"
	"github.com/hapi-gw/hapi/internal/gateway"
	"github.com/hapi-gw/hapi/internal/stats"
	"github.com/hapi-gw/hapi/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// busCapacity is the per-subscription channel capacity shared by every
// Command/Event subscriber.
const busCapacity = 256

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	settingsPath := "hapi.json"
	if len(os.Args) > 1 {
		settingsPath = os.Args[1]
	}

	settings, err := config.Load(settingsPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log.Info("config loaded",
		"server_addr", settings.ServerAddress(),
		"api_addr", settings.APIAddress(),
		"routes", len(settings.Routes),
	)

	routes, err := settings.ToRoutes()
	if err != nil {
		log.Error("failed to convert routes", "error", err)
		os.Exit(1)
	}
	probeConfigs, err := settings.ToProbeConfigs()
	if err != nil {
		log.Error("failed to convert probe config", "error", err)
		os.Exit(1)
	}

	// --- Bus ---
	b := bus.New(busCapacity)
	defer b.Close()

	// --- Routing core ---
	handler := corehandler.New(hapicore.NewContext(), b, log)

	// --- Probe supervisor ---
	// Constructed (and thus subscribed to events, see supervisor.New) before
	// SeedRoutes below: the bus has no replay buffer, so anything that must
	// observe the startup RouteWasAdded broadcasts has to be a subscriber
	// before SeedRoutes sends them, not just before Run is scheduled.
	sup := supervisor.New(b, log, probeConfigs)

	if err := handler.SeedRoutes(routes); err != nil {
		log.Error("failed to seed routes", "error", err)
		os.Exit(1)
	}

	// --- Stats aggregator ---
	registry := prometheus.NewRegistry()
	aggregator := stats.New(b, registry)

	// --- Config watcher ---
	watcher := config.NewWatcher(settingsPath, b, log, routes)

	// --- Data-plane listener ---
	processor := gateway.New(b, log, nil)
	dataServer := &http.Server{Addr: settings.ServerAddress(), Handler: processor}

	// --- Management listener ---
	apiHandler := api.New(b, log, registry)
	apiServer := &http.Server{Addr: settings.APIAddress(), Handler: apiHandler}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("received shutdown signal")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return handler.Run(gctx) })
	g.Go(func() error { return sup.Run(gctx) })
	g.Go(func() error { return aggregator.Run(gctx) })
	g.Go(func() error { return watcher.Run(gctx) })

	g.Go(func() error {
		log.Info("data-plane listening", "addr", settings.ServerAddress())
		if err := dataServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("management API listening", "addr", settings.APIAddress())
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		dataServer.Shutdown(context.Background())
		apiServer.Shutdown(context.Background())
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("subsystem failed", "error", err)
		os.Exit(1)
	}
}
