// Package main is the entry point for the coverplan resource planning
// service. It derives per-zone risk scores from historical incidents,
// distributes the device pool across zones under floor/ceiling
// constraints, matches volunteer responders to zones, and serves the
// resulting plans over a read-only HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aedworks/coverplan/internal/backup"
	"github.com/aedworks/coverplan/internal/config"
	"github.com/aedworks/coverplan/internal/database"
	"github.com/aedworks/coverplan/internal/modules/allocation"
	"github.com/aedworks/coverplan/internal/modules/assignment"
	"github.com/aedworks/coverplan/internal/modules/priority"
	"github.com/aedworks/coverplan/internal/modules/risk"
	"github.com/aedworks/coverplan/internal/modules/snapshots"
	"github.com/aedworks/coverplan/internal/pipeline"
	"github.com/aedworks/coverplan/internal/scheduler"
	"github.com/aedworks/coverplan/internal/server"
	"github.com/aedworks/coverplan/pkg/logger"
	"github.com/aedworks/coverplan/pkg/solver"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting coverplan")

	// Snapshot database holds every run's outputs; nothing else persists.
	db, err := database.New(database.Config{Path: cfg.DatabasePath()})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open snapshot database")
	}
	defer db.Close()

	repo := snapshots.NewRepository(db.Conn(), log)
	if err := repo.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate snapshot database")
	}

	// Planning stages.
	scorer := risk.NewScorer(risk.DefaultConfig(), log)
	index := priority.New(priority.Config{
		Amplifier:       cfg.Amplifier,
		AmplifyQuantile: cfg.AmplifyQuantile,
		MinWeight:       priority.DefaultConfig().MinWeight,
	}, log)
	allocator := allocation.New(allocation.Config{
		Floor:   cfg.Floor,
		Ceiling: cfg.Ceiling,
	}, log)
	optimizer := assignment.New(assignment.Config{
		ZoneCap:       cfg.ZoneCap,
		SolverTimeout: cfg.SolverTimeout,
	}, solver.NewExact(log), log)

	pipe := pipeline.New(pipeline.Config{
		ZonesPath:      cfg.ZonesPath,
		RespondersPath: cfg.RespondersPath,
		PriorPath:      cfg.PriorPath,
		TotalUnits:     cfg.TotalUnits,
		DMaxMeters:     cfg.DMaxMeters,
		ModelPath:      cfg.ModelPath(),
	}, scorer, index, allocator, optimizer, repo, log)

	if cfg.RunOnStart {
		go func() {
			if _, err := pipe.Run(context.Background()); err != nil {
				log.Error().Err(err).Msg("Startup planning run failed")
			}
		}()
	}

	// Background jobs: scheduled re-runs and snapshot backups.
	sched := scheduler.New(log)
	if cfg.PipelineCron != "" {
		job := scheduler.NewPlanningJob(pipe, cfg.SolverTimeout+10*time.Minute, log)
		if err := sched.AddJob(cfg.PipelineCron, job); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.PipelineCron).Msg("Invalid pipeline schedule")
		}
	}
	if cfg.S3Bucket != "" {
		store, err := backup.NewS3Client(context.Background(), cfg.S3Bucket, cfg.S3Region, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		svc := backup.NewService(store, db.Path(), cfg.S3Prefix, log)
		job := scheduler.NewBackupJob(svc, cfg.BackupRetentionDays, log)
		if err := sched.AddJob(cfg.BackupCron, job); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.BackupCron).Msg("Invalid backup schedule")
		}
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:     log,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
		Repo:    repo,
		DBPath:  db.Path(),
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
