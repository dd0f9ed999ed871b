package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sitecms/api/internal/app"
	"sitecms/api/internal/assets"
	"sitecms/api/internal/config"
	"sitecms/api/internal/editor"
	"sitecms/api/internal/email"
	"sitecms/api/internal/leads"
	sitelog "sitecms/api/internal/log"
	"sitecms/api/internal/schema"
	"sitecms/api/internal/search"
	"sitecms/api/internal/session"
	"sitecms/api/internal/store"
)

func main() {
	cfg := config.Load()
	sitelog.Configure(sitelog.Config{Level: cfg.LogLevel})
	logger := sitelog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, db, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("config store unavailable")
	}
	if db != nil {
		defer db.Close()
	}
	if err := store.Seed(ctx, backend, schema.Seed()); err != nil {
		logger.Fatal().Err(err).Msg("seeding configuration failed")
	}

	configStore := store.NewConfigStore(backend)
	cache := store.NewCache(configStore)
	if err := cache.Refresh(ctx); err != nil {
		logger.Fatal().Err(err).Msg("configuration could not be loaded")
	}

	var primary search.Backend
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		primary = meiliClient
	}
	searchService := search.NewService(primary)
	if current, err := cache.Get(ctx); err == nil {
		searchService.Reindex(ctx, current)
	}

	writer := store.NewWriter(backend)
	writer.OnCommit(func(_ context.Context, committed schema.SiteConfiguration) { cache.Set(committed) })
	writer.OnCommit(searchService.Reindex)

	storage, err := openStorage(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.AssetBackend).Msg("asset storage unavailable")
	}
	pipeline := assets.NewPipeline(storage)

	checks := map[string]app.Checker{"store": configStore}
	var snapshots editor.SnapshotStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		snapshots = redisStore
		checks["sessions"] = redisStore
		logger.Info().Msg("edit sessions stored in redis")
	} else {
		snapshots = session.NewMemoryStore()
		logger.Warn().Msg("REDIS_URL not set, edit sessions are lost on restart")
	}
	manager := editor.NewManager(cache, snapshots, editor.Deps{Writer: writer, Assets: pipeline}, cfg.SessionTTL)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		logger.Warn().Msg("SMTP not configured, leads are acknowledged without delivery")
	}

	service := app.New(app.Options{
		Config:   cache,
		Writer:   writer,
		Assets:   pipeline,
		Sessions: manager,
		Leads:    leads.NewService(cache, mailer),
		Search:   searchService,
		Checks:   checks,
	})

	if fileBackend, ok := backend.(*store.FileBackend); ok {
		go func() {
			if err := cache.Watch(ctx, fileBackend.Path()); err != nil {
				logger.Error().Err(err).Msg("configuration watcher stopped")
			}
		}()
	}

	httpServer := app.NewHTTPServer(service, app.HTTPOptions{
		CORSOrigin:        cfg.CORSOrigin,
		MaxUploadSize:     cfg.MaxUploadSize,
		LeadRatePerMinute: cfg.LeadRatePerMinute,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("site configuration API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	searchService.Wait()
}

// openBackend returns the configured artifact backend. The database handle is
// returned for closing when the backend is Postgres.
func openBackend(ctx context.Context, cfg config.Config) (store.Backend, *sql.DB, error) {
	switch cfg.StoreBackend {
	case "postgres":
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.ApplyMigrations(ctx, db, os.DirFS(cfg.MigrationsDir)); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store.NewPostgresBackend(db, ""), db, nil
	case "file", "":
		return store.NewFileBackend(cfg.StorePath), nil, nil
	default:
		return nil, nil, errors.New("SITECMS_STORE must be file or postgres")
	}
}

func openStorage(cfg config.Config) (assets.Storage, error) {
	switch cfg.AssetBackend {
	case "s3":
		return assets.NewObjectStorage(assets.ObjectConfig{
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Bucket:     cfg.S3Bucket,
			UseSSL:     cfg.S3UseSSL,
			PublicBase: cfg.AssetPublicBase,
		})
	case "disk", "":
		return assets.NewDiskStorage(cfg.AssetDir, cfg.AssetPublicBase), nil
	default:
		return nil, errors.New("SITECMS_ASSET_BACKEND must be disk or s3")
	}
}
