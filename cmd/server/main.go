package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dashtam/provider-sync/internal/backup"
	"github.com/dashtam/provider-sync/internal/cache"
	"github.com/dashtam/provider-sync/internal/config"
	"github.com/dashtam/provider-sync/internal/scheduler"
	"github.com/dashtam/provider-sync/internal/wiring"
	"github.com/dashtam/provider-sync/pkg/logger"
)

func main() {
	// Load configuration first so the log level is configurable.
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Provider Sync")

	app, err := wiring.Build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}
	defer app.Close()

	// Maintenance jobs: cache hygiene, and store backups when configured.
	// Data synchronization itself is never scheduled — every sync is
	// caller-initiated through the command handlers.
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	if err := registerJobs(sched, app, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Provider Sync started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
}

func registerJobs(sched *scheduler.Scheduler, app *wiring.App, cfg *config.Config, log zerolog.Logger) error {
	// Sweep expired cache rows every ten minutes.
	janitor := cache.NewJanitor(app.Cache, log)
	if err := sched.AddJob("0 */10 * * * *", janitor); err != nil {
		return err
	}

	if cfg.BackupBucket == "" {
		log.Info().Msg("BACKUP_S3_BUCKET not set; scheduled backups disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s3backup, err := backup.New(ctx, backup.Config{
		Bucket:   cfg.BackupBucket,
		Region:   cfg.BackupRegion,
		Endpoint: cfg.BackupEndpoint,
		Prefix:   cfg.BackupPrefix,
	}, []backup.Store{
		{DB: app.DomainDB, Name: "domain"},
	}, log)
	if err != nil {
		return err
	}
	return sched.AddJob(cfg.BackupSchedule, s3backup)
}
