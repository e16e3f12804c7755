package tenant

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/leadhub/services/lead"
	"github.com/pavitra93/leadhub/shared/middleware"
	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/utils"
)

// CreateTenantRequest represents the create tenant request
type CreateTenantRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// UpdateStatusRequest represents the status change request. An empty body toggles.
type UpdateStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// Overview is the drill-down summary of one tenant
type Overview struct {
	Tenant *models.Tenant `json:"tenant"`
	Users  int64          `json:"users_count"`
	Leads  lead.Stats     `json:"leads"`
}

// handleCreateTenant handles tenant creation
func handleCreateTenant(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.AbortWithError(c, utils.ValidationError("Name and slug are required"))
			return
		}

		name := strings.TrimSpace(req.Name)
		slug := models.NormalizeSlug(req.Slug)
		if name == "" {
			utils.AbortWithError(c, utils.ValidationError("Name and slug are required"))
			return
		}
		if !models.ValidSlug(slug) {
			utils.AbortWithError(c, utils.ValidationError("Slug may contain lowercase letters, digits and single hyphens only"))
			return
		}

		tenant := models.Tenant{
			ID:       uuid.New(),
			Name:     name,
			Slug:     slug,
			IsActive: true,
		}
		if err := d.Tenants.Create(c.Request.Context(), &tenant); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"tenant_id":  tenant.ID,
			"slug":       tenant.Slug,
			"created_by": c.GetString(middleware.ContextUserID),
		}).Info("Tenant created")

		utils.CreatedResponse(c, "Tenant created successfully", tenant)
	}
}

// handleGetTenants handles getting all tenants, newest first
func handleGetTenants(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenants, err := d.Tenants.List(c.Request.Context())
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Tenants retrieved successfully", tenants)
	}
}

// handleGetTenant handles getting a specific tenant
func handleGetTenant(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := utils.ParamUUID(c, "id", "tenant")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		tenant, err := d.Tenants.Get(c.Request.Context(), id)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Tenant retrieved successfully", tenant)
	}
}

// handleUpdateStatus activates or deactivates a tenant
func handleUpdateStatus(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := utils.ParamUUID(c, "id", "tenant")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.AbortWithError(c, utils.ValidationError("Invalid request format"))
			return
		}

		ctx := c.Request.Context()
		tenant, err := d.Tenants.Get(ctx, id)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		active := !tenant.IsActive
		if req.IsActive != nil {
			active = *req.IsActive
		}

		updated, err := d.Tenants.SetActive(ctx, id, active)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"tenant_id":  id,
			"is_active":  updated.IsActive,
			"changed_by": c.GetString(middleware.ContextUserID),
		}).Info("Tenant status changed")

		utils.OKResponse(c, "Tenant status updated successfully", updated)
	}
}

// handleDeleteTenant deletes a tenant with its identities and leads
func handleDeleteTenant(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := utils.ParamUUID(c, "id", "tenant")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if err := d.Tenants.Delete(c.Request.Context(), id); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"tenant_id":  id,
			"deleted_by": c.GetString(middleware.ContextUserID),
		}).Warn("Tenant deleted with its users and leads")

		utils.OKResponse(c, "Tenant deleted successfully", nil)
	}
}

// handleTenantOverview returns identity and lead counts for one tenant
func handleTenantOverview(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := utils.ParamUUID(c, "id", "tenant")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		tenant, err := d.Tenants.Get(ctx, id)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		stats, err := lead.CountStats(ctx, d.Leads, policy.ForTenant(id), d.now())
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Tenant overview retrieved successfully", Overview{
			Tenant: tenant,
			Users:  tenant.UsersCount,
			Leads:  stats,
		})
	}
}

// handleGetTenantUsers handles getting users for a specific tenant
func handleGetTenantUsers(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := utils.ParamUUID(c, "id", "tenant")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		if _, err := d.Tenants.Get(ctx, id); err != nil {
			utils.AbortWithError(c, err)
			return
		}
		users, err := d.Users.List(ctx, policy.ForTenant(id))
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Tenant users retrieved successfully", users)
	}
}

// handleGetTenantLeads handles getting leads for a specific tenant. Accepts the lead list filters.
func handleGetTenantLeads(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := utils.ParamUUID(c, "id", "tenant")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		filter, err := lead.FilterFromQuery(c)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		if _, err := d.Tenants.Get(ctx, id); err != nil {
			utils.AbortWithError(c, err)
			return
		}
		leads, err := d.Leads.List(ctx, policy.ForTenant(id), filter)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Tenant leads retrieved successfully", leads)
	}
}
