// Package tenant serves the SUPER_ADMIN tenant administration routes.
package tenant

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pavitra93/leadhub/shared/middleware"
	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/repository"
)

// Deps are the collaborators of the tenant handlers
type Deps struct {
	Tenants repository.TenantStore
	Users   repository.UserStore
	Leads   repository.LeadStore
	// Now defaults to time.Now
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// RegisterRoutes mounts the tenant routes under rg
func RegisterRoutes(rg *gin.RouterGroup, d Deps, auth *middleware.AuthMiddleware) {
	tenants := rg.Group("/tenant", auth.RequireAuth(), auth.ResolveScope())
	{
		tenants.POST("", auth.RequireSuperAdmin(policy.ActionCreateTenant), handleCreateTenant(d))
		tenants.GET("", auth.RequireSuperAdmin(policy.ActionListTenants), handleGetTenants(d))
		tenants.GET("/:id", auth.RequireSuperAdmin(policy.ActionReadTenant), handleGetTenant(d))
		tenants.PATCH("/:id/status", auth.RequireSuperAdmin(policy.ActionToggleTenant), handleUpdateStatus(d))
		tenants.DELETE("/:id", auth.RequireSuperAdmin(policy.ActionDeleteTenant), handleDeleteTenant(d))

		tenants.GET("/:id/overview", auth.RequireSuperAdmin(policy.ActionReadTenant), handleTenantOverview(d))
		tenants.GET("/:id/identities", auth.RequireSuperAdmin(policy.ActionReadTenant), handleGetTenantUsers(d))
		tenants.GET("/:id/leads", auth.RequireSuperAdmin(policy.ActionReadTenant), handleGetTenantLeads(d))
	}
}
