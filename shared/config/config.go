package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// AppConfig holds the process configuration read from the environment
type AppConfig struct {
	Port        string
	StoreDriver string
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	PublicLeads PublicLeadsConfig
	SuperAdmin  SuperAdminConfig
	CORSOrigins []string
	// TrustedProxies lists the proxy IPs or CIDRs whose forwarding headers
	// decide the client IP. Empty means the socket peer is the client.
	TrustedProxies []string
	LogLevel       string
	LogFormat      string
}

// RedisConfig locates the Redis used for public ingestion rate limiting.
// An empty Host disables rate limiting.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// AuthConfig configures access tokens
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// PublicLeadsConfig limits unauthenticated lead submissions per client IP
type PublicLeadsConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

// SuperAdminConfig describes the platform account created at startup when none exists
type SuperAdminConfig struct {
	Name     string
	Email    string
	Password string
}

// Enabled reports whether bootstrap credentials were supplied
func (c SuperAdminConfig) Enabled() bool {
	return c.Email != "" && c.Password != ""
}

// Load reads the configuration from environment variables
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:        getEnv("PORT", "8080"),
		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "password"),
			DBName:      getEnv("DB_NAME", "leadhub"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", os.Getenv("KEY")),
			Issuer:    getEnv("JWT_ISSUER", "leadhub"),
			TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),
		},
		PublicLeads: PublicLeadsConfig{
			RateLimit:  getEnvInt("PUBLIC_RATE_LIMIT", 30),
			RateWindow: getEnvDuration("PUBLIC_RATE_WINDOW", time.Minute),
		},
		SuperAdmin: SuperAdminConfig{
			Name:     getEnv("SUPER_ADMIN_NAME", "Super Admin"),
			Email:    os.Getenv("SUPER_ADMIN_EMAIL"),
			Password: os.Getenv("SUPER_ADMIN_PASSWORD"),
		},
		CORSOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TrustedProxies: getEnvList("TRUSTED_PROXIES", nil),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.PublicLeads.RateLimit <= 0 || c.PublicLeads.RateWindow <= 0 {
		return errors.New("PUBLIC_RATE_LIMIT and PUBLIC_RATE_WINDOW must be positive")
	}
	for _, proxy := range c.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("invalid TRUSTED_PROXIES entry %q", proxy)
			}
		}
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
