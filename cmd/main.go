package main

import (
	"complaints/backend/internal/api/handler"
	"complaints/backend/internal/auth"
	"complaints/backend/internal/complaint"
	"complaints/backend/internal/config"
	"complaints/backend/internal/eventhub"
	"complaints/backend/internal/localization"
	"complaints/backend/internal/metrics"
	"complaints/backend/internal/storage"
	"complaints/backend/internal/telegram"
	"complaints/backend/internal/tracking"
	"complaints/backend/internal/upload"
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	if err := storage.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting complaints backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.NotificationsBypass {
		log.Println("WARN: Notifications are bypassed (dev mode).")
	}

	// 1. Infrastructure
	db, rdb := setupDependencies(cfg)
	store := storage.NewStorageService(db, rdb)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	localizer, err := localization.NewLocalizer(cfg.LocalizationDir)
	if err != nil {
		log.Fatalf("Failed to load localization: %v", err)
	}
	notifier, err := telegram.NewNotifier(cfg.TelegramBotToken, localizer)
	if err != nil {
		log.Fatalf("Failed to start Telegram notifier: %v", err)
	}

	// 2. Core
	opts := complaint.DefaultOptions()
	opts.NotificationsBypass = cfg.NotificationsBypass
	complaints := complaint.NewService(complaint.Dependencies{
		Storage:  store,
		Tracking: tracking.NewGenerator(),
		Uploader: upload.NewLocalUploader(cfg.UploadDir),
		Events:   store,
		Notifier: notifier,
		Metrics:  m,
	}, opts)

	hub := eventhub.NewHub()
	hub.Metrics = m
	sweeper := complaint.NewSweeper(complaints, cfg.SweepInterval)

	// 3. HTTP
	r := gin.New()
	r.Use(handler.AccessLogger(gin.DefaultWriter), gin.Recovery())
	h := handler.NewHandler(complaints, store, auth.NewTokenService(cfg.JWTSecret, config.DefaultTokenTTL), hub)
	h.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// 4. Run until a signal arrives or a component fails
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return hub.ListenRedis(gctx, store) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("ERROR: Shutting down: %v", err)
	}

	if err := rdb.Close(); err != nil {
		log.Printf("WARN: Failed to close Redis: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Complaints backend stopped.")
}
