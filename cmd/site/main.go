package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"coursepage/site/internal/app"
	"coursepage/site/internal/comments"
	"coursepage/site/internal/config"
	"coursepage/site/internal/export"
	"coursepage/site/internal/identity"
	"coursepage/site/internal/observability"
	"coursepage/site/internal/search"
	"coursepage/site/internal/session"
	"coursepage/site/internal/store"
)

func main() {
	cfg := config.Load()
	logger := observability.InitLogger("coursepage", cfg.LogFormat, cfg.LogLevel)
	observability.RegisterMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		db          *sql.DB
		pgStore     *store.PostgresStore
		memoryStore *comments.MemoryStore
		commentSink comments.Store
	)
	if !cfg.UsesMemoryStore() {
		var err error
		db, err = openDatabase(ctx, cfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("database unavailable, keeping comments in memory")
		} else {
			defer db.Close()
			pgStore = store.NewPostgresStore(db, cfg.DatabaseURL, logger)
			go pgStore.RunListener(ctx, 5*time.Second)
			commentSink = pgStore
		}
	}
	if commentSink == nil {
		memoryStore = comments.NewMemoryStore()
		commentSink = memoryStore
		logger.Info().Msg("using in-memory comment store")
	}

	var (
		registry identity.Registry
		purge    func(context.Context) (int64, error)
	)
	switch {
	case strings.TrimSpace(cfg.RedisURL) != "":
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("using Redis for identity registry")
		registry = redisStore
	case pgStore != nil:
		logger.Info().Msg("using PostgreSQL for identity registry")
		registry = pgStore
		purge = pgStore.PurgeExpiredIdentities
	default:
		registry = identity.NewMemoryRegistry()
	}
	identities := identity.NewService(cfg.IdentitySecret, registry, cfg.IdentityTTL, logger)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	var fallback search.Searcher
	var pgfts *search.PgFTS
	if db != nil {
		pgfts = search.NewPgFTS(db)
		fallback = pgfts
	} else {
		fallback = search.NewMemorySearcher(memoryStore)
	}
	searchService := search.NewService(meiliClient, fallback, logger)
	defer searchService.Close()
	go searchService.ReindexFromPG(ctx, pgfts)

	opts := app.Options{
		Config:   cfg,
		Identity: identities,
		Comments: search.NewIndexingStore(commentSink, searchService),
		Search:   searchService,
		Export:   export.NewService(logger),
		Purge:    purge,
		Logger:   logger,
	}
	service := app.NewService(opts)
	service.Start(ctx)
	defer service.Close()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("app_id", cfg.AppID).Msg("course page listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	// Unmount pages first so open event streams end before Shutdown waits on them.
	service.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}

func openDatabase(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*sql.DB, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyMigrations(ctx, db, store.Migrations(cfg.MigrationsDir)); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info().Msg("database migrations applied")
	return db, nil
}
