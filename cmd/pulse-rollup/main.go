package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openfolio/pulse/pkg/analytics"
	"github.com/openfolio/pulse/pkg/config"
	"github.com/openfolio/pulse/pkg/observability"
	"github.com/openfolio/pulse/pkg/store"
	"github.com/robfig/cron/v3"
)

var (
	schedule   = flag.String("schedule", "*/30 * * * *", "Cron schedule for the maintenance pass (default: every 30 minutes)")
	runOnce    = flag.Bool("run-once", false, "Run one maintenance pass and exit (for testing)")
	runTimeout = flag.Duration("run-timeout", 10*time.Minute, "Timeout for a single maintenance pass")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	storeClient, err := store.NewClient(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to connect to durable store: %v", err)
	}
	defer storeClient.Close()

	rollup := analytics.NewRollup(storeClient, logger, cfg.Analytics)

	runPass := func() {
		ctx, cancel := context.WithTimeout(context.Background(), *runTimeout)
		defer cancel()

		start := time.Now()
		if err := rollup.Run(ctx); err != nil {
			logger.WithError(err).Error("maintenance pass failed")
			return
		}
		logger.WithField("duration", time.Since(start).String()).Info("maintenance pass completed")
	}

	if *runOnce {
		runPass()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, runPass); err != nil {
		log.Fatalf("Failed to schedule maintenance pass: %v", err)
	}

	c.Start()
	logger.WithField("schedule", *schedule).Info("pulse rollup started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	<-c.Stop().Done()
	logger.Info("rollup stopped")
}
