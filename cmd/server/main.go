package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/leca/dt-video-gen/internal/archive"
	"github.com/leca/dt-video-gen/internal/config"
	"github.com/leca/dt-video-gen/internal/database"
	"github.com/leca/dt-video-gen/internal/handler"
	"github.com/leca/dt-video-gen/internal/imageproc"
	"github.com/leca/dt-video-gen/internal/metrics"
	"github.com/leca/dt-video-gen/internal/poller"
	"github.com/leca/dt-video-gen/internal/remote"
	"github.com/leca/dt-video-gen/internal/router"
	"github.com/leca/dt-video-gen/internal/storage"
)

func main() {
	_ = godotenv.Load(".env", ".env.local")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	temp, err := storage.NewTempDir(cfg.TempDir)
	if err != nil {
		slog.Error("failed to prepare temp dir", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	client := remote.NewClient(remote.Options{
		BaseURL: cfg.RemoteBaseURL,
		APIKey:  cfg.RemoteAPIKey,
		Timeout: cfg.RemoteTimeout,
	})

	h := &handler.Handler{
		Remote: client,
		Poller: poller.New(client, poller.Options{
			MaxAttempts: cfg.PollMaxAttempts,
			BaseDelay:   cfg.PollBaseDelay,
			Logger:      logger,
			Metrics:     m,
		}),
		Images:  imageproc.NewPreprocessor(temp),
		Temp:    temp,
		Fetch:   &http.Client{Timeout: cfg.ImageFetchTimeout},
		Metrics: m,
		Config:  cfg,
	}

	if cfg.DBPath != "" {
		db, err := database.NewSQLiteDB(cfg.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		h.DB = db
	}

	store, err := archiveStore(cfg)
	if err != nil {
		slog.Error("failed to configure archive store", "error", err)
		os.Exit(1)
	}
	if store != nil {
		opts := archive.Options{Timeout: cfg.ArchiveTimeout, Logger: logger, Metrics: m}
		if h.DB != nil {
			opts.Ledger = h.DB
		}
		h.Archiver = archive.New(client, store, temp, opts)
	}

	srv := router.New(h, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", cfg.ListenAddr, "temp_dir", temp.Dir(), "archive", cfg.ArchiveBackend, "ledger", cfg.DBPath != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	if h.Archiver != nil {
		h.Archiver.Wait()
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func archiveStore(cfg *config.Config) (storage.Storage, error) {
	switch cfg.ArchiveBackend {
	case config.ArchiveFilesystem:
		return storage.NewFileSystem(cfg.ArchivePath), nil
	case config.ArchiveS3:
		return storage.NewS3(context.Background(), storage.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
		})
	default:
		return nil, nil
	}
}
