package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/leadhub/services/identity"
	"github.com/pavitra93/leadhub/services/lead"
	"github.com/pavitra93/leadhub/services/overview"
	"github.com/pavitra93/leadhub/services/tenant"
	"github.com/pavitra93/leadhub/shared/middleware"
	"github.com/pavitra93/leadhub/shared/repository"
	"github.com/pavitra93/leadhub/shared/utils"
)

// Stores bundles the persistence layer behind the API
type Stores struct {
	Tenants repository.TenantStore
	Users   repository.UserStore
	Leads   repository.LeadStore
	Stats   repository.StatsStore
	// Ping checks the backing database. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// RouterConfig holds what NewRouter needs to mount the API
type RouterConfig struct {
	Stores      Stores
	Tokens      *utils.TokenManager
	Limiter     *utils.RateLimiter
	CORSOrigins []string
	// TrustedProxies may set X-Forwarded-For. Nil trusts no one.
	TrustedProxies []string
}

// NewRouter builds the gin engine serving every route under /api/v1
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logrus.WithError(err).Warn("Ignoring invalid trusted proxies")
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS(cfg.CORSOrigins))

	router.GET("/health", handleHealth(cfg))

	stores := cfg.Stores
	auth := middleware.NewAuthMiddleware(cfg.Tokens, stores.Users, stores.Tenants)
	api := router.Group("/api/v1")

	identity.RegisterRoutes(api, identity.Deps{
		Users:   stores.Users,
		Tenants: stores.Tenants,
		Tokens:  cfg.Tokens,
	}, auth)
	lead.RegisterRoutes(api, lead.Deps{
		Leads:   stores.Leads,
		Tenants: stores.Tenants,
		Limiter: cfg.Limiter,
	}, auth)
	tenant.RegisterRoutes(api, tenant.Deps{
		Tenants: stores.Tenants,
		Users:   stores.Users,
		Leads:   stores.Leads,
	}, auth)
	overview.RegisterRoutes(api, overview.NewReporter(stores.Stats, stores.Leads, nil), auth)

	return router
}

// handleHealth reports database reachability and the rate limiter state
func handleHealth(cfg RouterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping := cfg.Stores.Ping; ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				logrus.WithError(err).Error("Health check failed")
				utils.ServiceUnavailableResponse(c, "Database unavailable")
				return
			}
		}

		status := gin.H{"database": "up", "rate_limiter": "disabled"}
		if cfg.Limiter != nil {
			status["rate_limiter"] = cfg.Limiter.BreakerState()
		}
		utils.OKResponse(c, "LeadHub is healthy", status)
	}
}
