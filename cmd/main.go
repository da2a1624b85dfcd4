package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"hekumbi_chat/internal/config"
	"hekumbi_chat/internal/infrastructure"
	"hekumbi_chat/internal/interfaces"
	"hekumbi_chat/internal/interfaces/http"
	"hekumbi_chat/internal/repository"
	"hekumbi_chat/internal/usecases"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	log := infrastructure.NewLogger(infrastructure.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg, log)
	defer store.Close()

	broker := infrastructure.NewBroker(64, log)
	var feed interfaces.ChangeFeed = broker
	if cfg.RedisURL != "" {
		rdb, err := infrastructure.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, change events stay local to this instance")
		} else {
			defer rdb.Close()
			redisFeed := infrastructure.NewRedisFeed(rdb, infrastructure.DefaultFeedChannel, broker, log)
			feed = redisFeed
			go func() {
				if err := redisFeed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("Redis change relay stopped")
				}
			}()
		}
	}

	alerter := infrastructure.NewTelegramAlerter(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.AdminPanelURL, log)

	flood := infrastructure.NewMessageRateLimiter(1, 5)
	defer flood.Stop()

	auth, err := usecases.NewAuthUsecase(cfg.AdminUsername, cfg.AdminPassword, cfg.JWTSecret)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialise admin authentication")
	}

	handler := http.NewHandler(http.Deps{
		Identity:  usecases.NewIdentityService(store, feed, infrastructure.NewSessionManager(), log),
		Chats:     usecases.NewChatService(store, feed, alerter, flood, log),
		Quotes:    usecases.NewQuoteService(store, feed, usecases.NewPricingCalculator(), alerter, log),
		Dashboard: usecases.NewDashboardUsecase(store),
		Auth:      auth,
		Bot:       usecases.NewMessageService(),
		Feed:      feed,
		Store:     store,
		Origins:   cfg.CORSOrigins,
		Warnings:  cfg.Warnings,
		Log:       log,
	})

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	http.SetupRoutes(r, handler, http.NewMiddleware(cfg.JWTSecret, cfg.CORSOrigins, log))

	srv := &nethttp.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "store": cfg.DBDriver}).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
}

// openStore connects the configured record store. A postgres or sqlite
// failure falls back to the in-memory store so the site keeps answering.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) interfaces.RecordStore {
	switch cfg.DBDriver {
	case "postgres":
		pg, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL)
		if err == nil {
			return repository.NewPostgresStore(pg)
		}
		log.WithError(err).Error("Failed to connect to PostgreSQL, using the in-memory store")
	case "sqlite":
		st, err := repository.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err == nil {
			log.WithField("path", cfg.SQLitePath).Info("Using SQLite store")
			return st
		}
		log.WithError(err).Error("Failed to open SQLite store, using the in-memory store")
	}
	return repository.NewMemoryStore()
}
