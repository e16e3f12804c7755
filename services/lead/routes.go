// Package lead serves public lead ingestion and tenant-scoped lead management.
package lead

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pavitra93/leadhub/shared/middleware"
	"github.com/pavitra93/leadhub/shared/repository"
	"github.com/pavitra93/leadhub/shared/utils"
)

// Deps are the collaborators of the lead handlers
type Deps struct {
	Leads   repository.LeadStore
	Tenants repository.TenantStore
	// Limiter throttles public submissions per client IP. Nil disables it.
	Limiter *utils.RateLimiter
	// Now defaults to time.Now
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// RegisterRoutes mounts the public ingestion route and the authenticated lead routes under rg
func RegisterRoutes(rg *gin.RouterGroup, d Deps, auth *middleware.AuthMiddleware) {
	public := rg.Group("/public/lead", middleware.RateLimit(d.Limiter))
	public.POST("/:slug", handleSubmitLead(d))

	leads := rg.Group("/lead", auth.RequireAuth(), auth.ResolveScope())
	{
		leads.GET("", handleListLeads(d))
		leads.GET("/stats", handleLeadStats(d))
		leads.GET("/export", handleExportLeads(d))
		leads.POST("/bulk-delete", handleBulkDelete(d))
		leads.GET("/:id", handleGetLead(d))
		leads.DELETE("/:id", handleDeleteLead(d))
	}
}
