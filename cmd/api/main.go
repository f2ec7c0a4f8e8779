package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/khatalens/internal/api"
	"github.com/dvloznov/khatalens/internal/config"
	"github.com/dvloznov/khatalens/internal/extraction"
	"github.com/dvloznov/khatalens/internal/kvstore"
	"github.com/dvloznov/khatalens/internal/logger"
	"github.com/dvloznov/khatalens/internal/marketing"
	"github.com/dvloznov/khatalens/internal/store"
	"github.com/dvloznov/khatalens/internal/workflow"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var (
		port = flag.String("port", cfg.HTTPPort, "HTTP server port")
		dsn  = flag.String("db", cfg.DatabaseDSN, "SQLite DSN for record storage (empty = file store)")
	)
	flag.Parse()

	ctx := context.Background()

	// Record storage: SQLite when a DSN is configured, plain files otherwise.
	var kv kvstore.KV
	if *dsn != "" {
		sqliteStore, err := kvstore.OpenSQLite(*dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite store")
		}
		defer sqliteStore.Close()
		kv = sqliteStore
		log.Info().Str("dsn", *dsn).Msg("Using SQLite record storage")
	} else {
		fileStore, err := kvstore.NewFileStore(cfg.DataDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open file store")
		}
		kv = fileStore
		log.Info().Str("dir", cfg.DataDir).Msg("Using file record storage")
	}

	records := store.New(kv, logger.Component(log, "store"))

	extractor, err := extraction.NewClient(ctx, cfg.GeminiAPIKey, logger.Component(log, "extraction"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction client")
	}

	marketer, err := marketing.NewClient(ctx, cfg.GeminiAPIKey, logger.Component(log, "marketing"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create marketing client")
	}

	sessions := api.NewSessionManager(func() *workflow.Controller {
		return workflow.New(extractor, records, logger.Component(log, "workflow"))
	})

	handler := api.NewHandler(sessions, marketer, cfg.JWTSecret, log)

	server := &http.Server{
		Addr:    ":" + *port,
		Handler: handler.Router(),
	}

	go func() {
		log.Info().Str("port", *port).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
