package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/cinestream/internal/auth"
	"github.com/Clark-Hu/cinestream/internal/catalog"
	"github.com/Clark-Hu/cinestream/internal/config"
	"github.com/Clark-Hu/cinestream/internal/domain"
	httpserver "github.com/Clark-Hu/cinestream/internal/http"
	"github.com/Clark-Hu/cinestream/internal/logging"
	"github.com/Clark-Hu/cinestream/internal/maintenance"
	"github.com/Clark-Hu/cinestream/internal/metrics"
	"github.com/Clark-Hu/cinestream/internal/repository"
	"github.com/Clark-Hu/cinestream/internal/store"
	"github.com/Clark-Hu/cinestream/internal/tmdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", "json", "cinestream")
		bootLogger.Fatal().Err(err).Msg("config error")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, "cinestream")

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer st.Close()

	if cfg.DBAutoMigrate {
		if err := st.Migrate(dbCtx); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	m := metrics.New()
	m.RegisterPool(st.Stats)

	repo := repository.New(st)

	sessions, err := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL, cfg.SessionCookieSecure)
	if err != nil {
		logger.Fatal().Err(err).Msg("init sessions")
	}

	authn, err := auth.NewAuthenticator(repo.Admins, auth.Config{
		MaxAttempts:  cfg.AuthMaxLoginAttempts,
		LockDuration: cfg.AuthLockDuration,
		BcryptCost:   cfg.AuthBcryptCost,
		StoreTimeout: cfg.StoreTimeout,
	}, logger, auth.WithRecorder(m))
	if err != nil {
		logger.Fatal().Err(err).Msg("init authenticator")
	}

	if cfg.AdminEmail != "" {
		bootstrapAdmin(ctx, authn, cfg, logger)
	}

	svc, err := catalog.NewService(repo.Movies, sessions, domain.NewGenreSet(cfg.Genres), cfg.StoreTimeout, logger, catalog.WithRecorder(m))
	if err != nil {
		logger.Fatal().Err(err).Msg("init catalog")
	}

	var lookup tmdb.Client
	if cfg.TMDBAPIKey != "" {
		client, err := tmdb.NewHTTPClient(tmdb.Options{
			BaseURL:   cfg.TMDBURL,
			APIKey:    cfg.TMDBAPIKey,
			Language:  cfg.TMDBLanguage,
			Timeout:   cfg.TMDBTimeout,
			RateLimit: cfg.TMDBRateLimit,
			Logger:    logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("init tmdb client")
		}
		lookup = client
	} else {
		logger.Warn().Msg("TMDB_API_KEY not set, movie lookup disabled")
	}

	jobs, err := maintenance.New(maintenance.Config{
		LockSweepSchedule:      cfg.LockSweepSchedule,
		MetricsRefreshSchedule: cfg.MetricsRefreshSchedule,
		JobTimeout:             cfg.StoreTimeout,
	}, repo.Admins, repo.Movies, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init maintenance jobs")
	}
	jobs.Start(ctx)
	defer jobs.Stop()

	server := httpserver.New(cfg, httpserver.Deps{
		Store:    st,
		Catalog:  svc,
		Auth:     authn,
		Sessions: sessions,
		TMDB:     lookup,
		Metrics:  m,
		Logger:   logger,
	})

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	logger.Info().Msg("shutdown complete")
}

func bootstrapAdmin(ctx context.Context, authn *auth.Authenticator, cfg config.Config, logger zerolog.Logger) {
	_, err := authn.Bootstrap(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName, domain.RoleSuperadmin)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrAdminExists):
		logger.Debug().Msg("administrator already provisioned, skipping bootstrap")
	default:
		logger.Fatal().Err(err).Msg("bootstrap administrator")
	}
}
