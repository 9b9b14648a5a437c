package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"agrimarket-backend/config"
	"agrimarket-backend/database"
	"agrimarket-backend/internal/api"
	"agrimarket-backend/internal/logging"
	"agrimarket-backend/internal/middleware"
	"agrimarket-backend/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	logrus.SetLevel(log.GetLevel())
	logrus.SetFormatter(log.Formatter)

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	if err := os.MkdirAll(cfg.UploadPath, 0755); err != nil {
		log.WithError(err).Fatal("Failed to create upload directory")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := api.Dependencies{
		Config: cfg,
		DB:     db,
		Log:    log,
		Feed:   services.NewSalesFeed(log, cfg.AllowedOrigins),
	}
	defer deps.Feed.Close()

	if rdb := connectRedis(cfg, log); rdb != nil {
		defer rdb.Close()
		deps.Limiter = middleware.NewRedisLimiter(rdb, "rate_limit:", cfg.RateLimitRequests, cfg.RateLimitPeriod(), log)
		deps.AuthLimiter = middleware.NewRedisLimiter(rdb, "auth_rate_limit:", cfg.AuthRateLimitRequests, cfg.RateLimitPeriod(), log)
	}

	router := api.NewRouter(deps)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).WithField("environment", cfg.Environment).Info("AgriMarket API server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server shutdown complete")
}

// connectRedis returns nil when REDIS_URL is unset or unreachable; the
// in-memory limiter takes over in that case
func connectRedis(cfg *config.Config, log logrus.FieldLogger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("Invalid REDIS_URL, using in-memory rate limiting")
		return nil
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Failed to connect to Redis, using in-memory rate limiting")
		client.Close()
		return nil
	}

	log.Info("Redis connected, using shared rate limiting")
	return client
}
