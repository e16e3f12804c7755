package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/leadhub/services/identity"
	"github.com/pavitra93/leadhub/shared/config"
	"github.com/pavitra93/leadhub/shared/repository"
	"github.com/pavitra93/leadhub/shared/repository/memory"
	"github.com/pavitra93/leadhub/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	configureLogging(cfg)

	ctx := context.Background()

	stores, err := openStores(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	limiter, redisClient := openRateLimiter(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	if err := identity.EnsureSuperAdmin(ctx, stores.Users, cfg.SuperAdmin); err != nil {
		logrus.Fatalf("Failed to bootstrap super admin: %v", err)
	}

	router := NewRouter(RouterConfig{
		Stores:         stores,
		Tokens:         utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		Limiter:        limiter,
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":  cfg.Port,
			"store": cfg.StoreDriver,
		}).Info("LeadHub API starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down LeadHub API")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Forced shutdown")
	}
}

func configureLogging(cfg *config.AppConfig) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

// openStores connects the configured store driver
func openStores(cfg *config.AppConfig) (Stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logrus.Warn("Using in-memory store, data is lost on restart")
		store := memory.New()
		return Stores{
			Tenants: store.Tenants(),
			Users:   store.Users(),
			Leads:   store.Leads(),
			Stats:   store.Stats(),
		}, nil
	}

	db, err := config.ConnectDatabase(cfg.Database)
	if err != nil {
		return Stores{}, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return Stores{}, err
	}
	return Stores{
		Tenants: repository.NewTenantRepository(db),
		Users:   repository.NewUserRepository(db),
		Leads:   repository.NewLeadRepository(db),
		Stats:   repository.NewStatsRepository(db),
		Ping:    sqlDB.PingContext,
	}, nil
}

// openRateLimiter connects to Redis for public ingestion throttling.
// Without Redis the public route is not rate limited.
func openRateLimiter(ctx context.Context, cfg *config.AppConfig) (*utils.RateLimiter, *redis.Client) {
	if cfg.Redis.Host == "" {
		logrus.Warn("REDIS_HOST not set, public lead rate limiting disabled")
		return nil, nil
	}
	client, err := utils.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logrus.Warnf("Failed to connect to Redis, rate limiting disabled: %v", err)
		return nil, nil
	}
	limiter := utils.NewRateLimiter(client, "ratelimit:public-lead", cfg.PublicLeads.RateLimit, cfg.PublicLeads.RateWindow)
	return limiter, client
}
