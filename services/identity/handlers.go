package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/leadhub/shared/middleware"
	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/utils"
)

// LoginRequest represents the login request. TenantSlug picks the account when
// the same email is registered in several tenants.
type LoginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	TenantSlug string `json:"tenant_slug"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      models.UserSummary `json:"user"`
}

// CreateIdentityRequest represents the create identity request
type CreateIdentityRequest struct {
	Name     string     `json:"name" binding:"required"`
	Email    string     `json:"email" binding:"required,email"`
	Phone    string     `json:"phone" binding:"required"`
	Password string     `json:"password" binding:"required,min=8"`
	Role     string     `json:"role"`
	TenantID *uuid.UUID `json:"tenant_id"`
}

// ChangeRoleRequest represents the role change request
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateProfileRequest represents the self-service profile update
type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email" binding:"omitempty,email"`
	Phone *string `json:"phone"`
}

// ChangePasswordRequest represents the self-service password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// handleLogin exchanges email and password for an access token
func handleLogin(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.AbortWithError(c, utils.ValidationError("Email and password are required"))
			return
		}
		ctx := c.Request.Context()

		user, err := findLoginAccount(ctx, d, req.Email, req.TenantSlug)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		if !user.IsSuperAdmin() {
			if err := checkLoginTenant(ctx, d, user); err != nil {
				utils.AbortWithError(c, err)
				return
			}
		}

		ok, err := utils.CheckPassword(user.PasswordHash, req.Password)
		if err != nil {
			utils.AbortWithError(c, utils.PersistenceError(err))
			return
		}
		if !ok {
			logrus.WithField("user_id", user.ID).Warn("Login failed: wrong password")
			utils.AbortWithError(c, utils.ValidationError("Wrong password"))
			return
		}

		token, expiresAt, err := d.Tokens.Issue(user)
		if err != nil {
			utils.AbortWithError(c, utils.PersistenceError(err))
			return
		}

		logrus.WithFields(logrus.Fields{
			"user_id": user.ID,
			"role":    user.Role,
		}).Info("User logged in")

		utils.OKResponse(c, "Login successful", LoginResponse{
			Token:     token,
			ExpiresAt: expiresAt,
			User:      user.Summary(),
		})
	}
}

func findLoginAccount(ctx context.Context, d Deps, email, tenantSlug string) (*models.User, error) {
	candidates, err := d.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, utils.NotFoundError("User not found")
	}

	tenantSlug = models.NormalizeSlug(tenantSlug)
	if tenantSlug == "" {
		for i := range candidates {
			if candidates[i].IsSuperAdmin() {
				return &candidates[i], nil
			}
		}
		if len(candidates) > 1 {
			return nil, utils.ValidationError("tenant_slug is required for this account")
		}
		return &candidates[0], nil
	}

	tenant, err := d.Tenants.GetBySlug(ctx, tenantSlug)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.NotFoundError("User not found")
		}
		return nil, err
	}
	for i := range candidates {
		if candidates[i].BelongsTo(tenant.ID) {
			return &candidates[i], nil
		}
	}
	return nil, utils.NotFoundError("User not found")
}

// checkLoginTenant rejects identities whose tenant is missing or disabled
func checkLoginTenant(ctx context.Context, d Deps, user *models.User) error {
	if user.TenantID == nil {
		return utils.ValidationError("Tenant not assigned")
	}
	tenant, err := d.Tenants.Get(ctx, *user.TenantID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.ValidationError("Tenant not assigned")
		}
		return err
	}
	if !tenant.IsActive {
		return utils.AuthorizationError("Tenant is disabled")
	}
	return nil
}

// handleCreateIdentity creates an identity within the limits of the caller's role
func handleCreateIdentity(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, _ := middleware.GetIdentity(c)

		var req CreateIdentityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.AbortWithError(c, utils.ValidationError("Invalid request format"))
			return
		}

		grant, err := policy.AuthorizeCreateIdentity(caller, policy.CreateIdentityRequest{
			Role:     req.Role,
			TenantID: req.TenantID,
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		ctx := c.Request.Context()

		if _, err := d.Tenants.Get(ctx, grant.TenantID); err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if err := policy.GuardDuplicateIdentity(ctx, d.Users, grant.TenantID, req.Email, uuid.Nil); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			utils.AbortWithError(c, utils.PersistenceError(err))
			return
		}

		tenantID := grant.TenantID
		assignedBy := caller.ID
		user := models.User{
			ID:             uuid.New(),
			Name:           strings.TrimSpace(req.Name),
			Email:          models.NormalizeEmail(req.Email),
			Phone:          strings.TrimSpace(req.Phone),
			PasswordHash:   hash,
			Role:           grant.Role,
			RoleAssignedBy: &assignedBy,
			TenantID:       &tenantID,
		}
		if err := d.Users.Create(ctx, &user); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"user_id":    user.ID,
			"role":       user.Role,
			"tenant_id":  tenantID,
			"created_by": caller.ID,
		}).Info("User created")

		utils.CreatedResponse(c, "User created successfully", user)
	}
}

// handleListIdentities lists the identities visible to the caller
func handleListIdentities(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := d.Users.List(c.Request.Context(), middleware.GetScope(c))
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Users retrieved successfully", users)
	}
}

// handleGetIdentity returns one identity visible to the caller
func handleGetIdentity(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := utils.ParamUUID(c, "id", "user")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		user, err := d.Users.Get(c.Request.Context(), middleware.GetScope(c), id)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "User retrieved successfully", user)
	}
}

// handleChangeRole changes the role of an identity in the caller's scope
func handleChangeRole(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, _ := middleware.GetIdentity(c)

		id, err := utils.ParamUUID(c, "id", "user")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		var req ChangeRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.AbortWithError(c, utils.ValidationError("Role is required"))
			return
		}

		if _, err := policy.CheckRoleAssigner(caller, req.Role); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		scope := middleware.GetScope(c)
		target, err := d.Users.Get(ctx, scope, id)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		role, err := policy.AuthorizeRoleChange(caller, target, req.Role)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		updated, err := d.Users.UpdateRole(ctx, scope, id, role, caller.ID)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"user_id":     id,
			"from":        target.Role,
			"to":          role,
			"assigned_by": caller.ID,
		}).Info("User role changed")

		utils.OKResponse(c, "Role updated successfully", updated)
	}
}

// handleDeleteIdentity deletes an identity in the caller's scope
func handleDeleteIdentity(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, _ := middleware.GetIdentity(c)

		id, err := utils.ParamUUID(c, "id", "user")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if err := policy.CheckIdentityDeleter(caller); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		scope := middleware.GetScope(c)
		target, err := d.Users.Get(ctx, scope, id)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if err := policy.AuthorizeDeleteIdentity(caller, target); err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if err := d.Users.Delete(ctx, scope, id); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"user_id":    id,
			"deleted_by": caller.ID,
		}).Info("User deleted")

		utils.OKResponse(c, "User deleted successfully", nil)
	}
}

// handleVerify confirms the token is still valid and returns the live identity
func handleVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, _ := middleware.GetIdentity(c)
		utils.OKResponse(c, "Token is valid", gin.H{
			"authorized": true,
			"user":       caller,
		})
	}
}

// handleUpdateProfile lets an identity change its own name, email and phone
func handleUpdateProfile(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, _ := middleware.GetIdentity(c)

		id, err := utils.ParamUUID(c, "id", "user")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if err := policy.AuthorizeSelfService(caller, id); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.AbortWithError(c, utils.ValidationError("Invalid request format"))
			return
		}

		updated := *caller
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				utils.AbortWithError(c, utils.ValidationError("Name cannot be empty"))
				return
			}
			updated.Name = strings.TrimSpace(*req.Name)
		}
		if req.Phone != nil {
			updated.Phone = strings.TrimSpace(*req.Phone)
		}

		ctx := c.Request.Context()
		if req.Email != nil {
			updated.Email = models.NormalizeEmail(*req.Email)
			if updated.TenantID != nil && updated.Email != caller.Email {
				if err := policy.GuardDuplicateIdentity(ctx, d.Users, *updated.TenantID, updated.Email, caller.ID); err != nil {
					utils.AbortWithError(c, err)
					return
				}
			}
		}

		if err := d.Users.UpdateProfile(ctx, &updated); err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Profile updated successfully", updated)
	}
}

// handleChangePassword lets an identity replace its own password
func handleChangePassword(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, _ := middleware.GetIdentity(c)

		id, err := utils.ParamUUID(c, "id", "user")
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if err := policy.AuthorizeSelfService(caller, id); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		var req ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.AbortWithError(c, utils.ValidationError("Current and new password (min 8 characters) are required"))
			return
		}

		ok, err := utils.CheckPassword(caller.PasswordHash, req.CurrentPassword)
		if err != nil {
			utils.AbortWithError(c, utils.PersistenceError(err))
			return
		}
		if !ok {
			utils.AbortWithError(c, utils.ValidationError("Current password is incorrect"))
			return
		}

		hash, err := utils.HashPassword(req.NewPassword)
		if err != nil {
			utils.AbortWithError(c, utils.PersistenceError(err))
			return
		}
		if err := d.Users.UpdatePassword(c.Request.Context(), caller.ID, hash); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		logrus.WithField("user_id", caller.ID).Info("Password changed")
		utils.OKResponse(c, "Password updated successfully", nil)
	}
}
