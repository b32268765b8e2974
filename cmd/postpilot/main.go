package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pysugar/postpilot/internal/api"
	"github.com/pysugar/postpilot/internal/auth/credential"
	"github.com/pysugar/postpilot/internal/auth/linkedin"
	"github.com/pysugar/postpilot/internal/config"
	"github.com/pysugar/postpilot/internal/db"
	"github.com/pysugar/postpilot/internal/db/models"
	"github.com/pysugar/postpilot/internal/logging"
	"github.com/pysugar/postpilot/internal/posts"
	"github.com/pysugar/postpilot/internal/publisher"
	linkedinpub "github.com/pysugar/postpilot/internal/publisher/linkedin"
	"github.com/pysugar/postpilot/internal/publisher/stub"
	"github.com/pysugar/postpilot/internal/scheduler"
	"github.com/pysugar/postpilot/internal/version"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, cfgErr := config.Load()
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("⚠️  Config file ignored, using defaults and environment")
	}
	log.Info().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_time", version.BuildTime).
		Msg("PostPilot")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	creds := credential.NewDBStore(database)
	repo := posts.NewRepository(database)

	registry := publisher.NewRegistry(stub.New(cfg.Publishers.StubDelay))
	registry.Register(models.PlatformLinkedIn, linkedinpub.New(
		linkedinpub.WithAPIBase(cfg.Publishers.LinkedInAPIBase),
		linkedinpub.WithRateLimit(cfg.Publishers.LinkedInRatePerSec),
		linkedinpub.WithHTTPClient(&http.Client{Timeout: cfg.Publishers.HTTPTimeout}),
	))

	sched := scheduler.New(scheduler.Config{
		Spec:           cfg.Scheduler.Spec,
		Workers:        cfg.Scheduler.Workers,
		PublishTimeout: cfg.Scheduler.PublishTimeout,
	}, repo, creds, registry)
	if err := sched.ValidateSpec(cfg.Scheduler.Spec); err != nil {
		log.Error().Err(err).Str("spec", cfg.Scheduler.Spec).Msgf("Invalid schedule, falling back to %q", config.DefaultScheduleSpec)
		sched = scheduler.New(scheduler.Config{
			Spec:           config.DefaultScheduleSpec,
			Workers:        cfg.Scheduler.Workers,
			PublishTimeout: cfg.Scheduler.PublishTimeout,
		}, repo, creds, registry)
	}
	// Ticks outlive the signal so Stop can let an in-flight tick finish.
	if err := sched.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	oauth := linkedin.NewHandler(linkedin.Config{
		ClientID:     cfg.LinkedIn.ClientID,
		ClientSecret: cfg.LinkedIn.ClientSecret,
		AppURL:       cfg.AppURL,
	}, creds)
	if !oauth.Enabled() {
		log.Warn().Msg("⚠️  LINKEDIN_CLIENT_ID not set, sign-in is simulated")
	}

	router := api.NewRouter(api.Deps{
		DB:            database,
		Posts:         posts.NewService(repo),
		Credentials:   creds,
		Scheduler:     sched,
		OAuth:         oauth,
		AdminPassword: cfg.AdminPassword,
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	displayURL := "localhost:" + cfg.Port
	if cfg.Host == "0.0.0.0" {
		displayURL = "<your-ip>:" + cfg.Port
	}
	log.Info().Msgf("🚀 PostPilot starting on http://%s", cfg.Addr())
	log.Info().Msgf("📮 Posts API: http://%s/api/posts", displayURL)
	if cfg.AdminPassword != "" {
		log.Info().Msg("🔒 /api is protected by POSTPILOT_ADMIN_PASSWORD")
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	sched.Stop(shutdownCtx)

	if sqlDB, err := database.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("👋 Bye")
}
