package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"solafeed/internal/config"
	"solafeed/internal/db"
	"solafeed/internal/feed"
	"solafeed/internal/handlers"
	"solafeed/internal/logging"
	"solafeed/internal/middleware"
	"solafeed/internal/router"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	// Initialize Database
	gdb, err := db.Open(db.Options{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}

	store := db.NewBreakerStore(db.NewStore(gdb), db.BreakerSettings{
		Name:         "postgres",
		MaxRequests:  cfg.Breaker.MaxRequests,
		Interval:     cfg.Breaker.Interval,
		Timeout:      cfg.Breaker.Timeout,
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
	}, logger)

	svc, err := feed.NewService(store, feed.ServiceConfig{
		PageSize: cfg.Feed.PageSize,
		Retry: feed.RetryPolicy{
			MaxRetries: cfg.Feed.RetryMax,
			Base:       cfg.Feed.RetryBase,
			Timeout:    cfg.Feed.IOTimeout,
		},
		HighlightPool:    cfg.Feed.HighlightPool,
		HighlightOutput:  cfg.Feed.HighlightOutput,
		PopularCacheTTL:  cfg.Feed.PopularCacheTTL,
		PopularCacheSize: 16,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build feed service")
	}

	sessions, err := handlers.NewSessionRegistry(cfg.Session.CacheSize, cfg.Session.TTL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build session registry")
	}

	// Initialize Gin
	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))
	router.RegisterRoutes(r, handlers.NewFeedHandler(svc, sessions), handlers.NewHomeHandler(svc))

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("SolaFeed server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
