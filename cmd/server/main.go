package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tsuji/bunkei/internal/api"
	"github.com/tsuji/bunkei/internal/config"
	"github.com/tsuji/bunkei/internal/db"
	"github.com/tsuji/bunkei/internal/fsrs"
	"github.com/tsuji/bunkei/internal/journal"
	"github.com/tsuji/bunkei/internal/logger"
	"github.com/tsuji/bunkei/internal/persist"
	"github.com/tsuji/bunkei/internal/scheduler"
	"github.com/tsuji/bunkei/internal/services"
	"github.com/tsuji/bunkei/internal/storage"
)

func main() {
	cfg := config.Load()

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("Bunkei Drill Server Starting")
	log.Info("===========================================")

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration: %v", err)
		os.Exit(1)
	}
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("store_backend=%s", cfg.StoreBackend)
	log.Debug("snapshot_key=%s", cfg.SnapshotKey)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("desired_retention=%v", cfg.DesiredRetention)
	log.Debug("max_interval_days=%d", cfg.MaxIntervalDays)
	log.Debug("queue_size=%d", cfg.QueueSize)

	// Open the review log database.
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	// Open the snapshot store.
	store, err := openStore(cfg, database)
	if err != nil {
		log.Error("failed to open snapshot store: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing snapshot store")
		if err := store.Close(); err != nil {
			log.Warn("snapshot store close: %v", err)
		}
	}()
	log.Info("snapshot store ready: backend=%s", cfg.StoreBackend)

	sched, err := scheduler.New(schedulerConfig(cfg))
	if err != nil {
		log.Error("failed to build scheduler: %v", err)
		os.Exit(1)
	}

	persister := persist.New(store, cfg.SnapshotKey)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	persister.Start(ctx)

	drills := services.NewDrillService(sched, persister, journal.New(database), store, cfg.SnapshotKey)

	// Restore the card set from the last snapshot; a fresh store is not an
	// error, the scheduler just starts empty.
	if err := drills.Restore(ctx); err != nil {
		log.Warn("failed to restore snapshot, starting empty: %v", err)
	} else {
		log.Info("card set restored from snapshot")
	}

	srv := &api.Server{
		Drills:    drills,
		DB:        database,
		Persister: persister,
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	// Stop the persister after the server so the last reviews still get
	// their snapshot flushed.
	log.Debug("stopping snapshot persister")
	persister.Stop()

	log.Info("===========================================")
	log.Info("Bunkei Drill Server Stopped")
	log.Info("===========================================")
}

// openStore builds the snapshot store named by STORE_BACKEND.
func openStore(cfg config.Config, database *db.DB) (storage.Store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return storage.NewSQLite(database), nil
	case "remote":
		return storage.NewRemote(cfg.RemoteKVURL, cfg.RemoteKVToken), nil
	case "memory":
		return storage.NewMemory(), nil
	default:
		return storage.NewBadger(storage.DefaultBadgerConfig(cfg.DataDir))
	}
}

// schedulerConfig maps environment configuration onto scheduler knobs.
func schedulerConfig(cfg config.Config) scheduler.Config {
	params := fsrs.DefaultParams()
	params.DesiredRetention = cfg.DesiredRetention
	params.MaxIntervalDays = cfg.MaxIntervalDays
	if len(cfg.FSRSWeights) == fsrs.WeightCount {
		copy(params.Weights[:], cfg.FSRSWeights)
	}

	return scheduler.Config{
		Params:                    params,
		LearningSteps:             minuteSteps(cfg.LearningStepsMin),
		RelearningSteps:           minuteSteps(cfg.RelearningStepsMin),
		GraduatingIntervalDays:    cfg.GraduatingIntervalDays,
		EasyIntervalDays:          cfg.EasyIntervalDays,
		QueueSize:                 cfg.QueueSize,
		GraduationStreak:          cfg.GraduationStreak,
		GraduationMinIntervalDays: cfg.GraduationMinIntervalDays,
		ReactivationLapses:        cfg.ReactivationLapses,
		ReactivationWindow:        time.Duration(cfg.ReactivationWindowDays) * 24 * time.Hour,
		ReactivationMaxSiblings:   cfg.ReactivationMaxSiblings,
	}
}

func minuteSteps(minutes []int) []time.Duration {
	steps := make([]time.Duration, 0, len(minutes))
	for _, m := range minutes {
		steps = append(steps, time.Duration(m)*time.Minute)
	}
	return steps
}
