package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openfolio/pulse/pkg/analytics"
	"github.com/openfolio/pulse/pkg/api"
	"github.com/openfolio/pulse/pkg/cache"
	"github.com/openfolio/pulse/pkg/config"
	"github.com/openfolio/pulse/pkg/observability"
	"github.com/openfolio/pulse/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	storeClient, err := store.NewClient(cfg.Store)
	if err != nil {
		// The cache fails open without the store, but a service that cannot
		// reach it at boot is almost always misconfigured. Fail loud here.
		logger.WithError(err).Error("durable store connection failed")
		os.Exit(1)
	}
	defer storeClient.Close()

	if metrics != nil {
		storeClient.Instrument(metrics)
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				metrics.StoreConnectionsNum.Set(float64(storeClient.PoolStats().TotalConns))
			}
		}()
	}

	local := cache.NewLocal(cfg.Cache)
	tiered := cache.NewTiered(local, storeClient, logger, metrics)
	tracker := analytics.NewTracker(storeClient, tiered, logger, metrics, cfg.Analytics)
	health := observability.NewHealthChecker(storeClient)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewServer(tracker, tiered, health, logger, metrics, registry),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("pulse listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown did not complete cleanly")
	}
	logger.Info("pulse stopped")
}
