// Package identity serves login and identity management.
package identity

import (
	"github.com/gin-gonic/gin"

	"github.com/pavitra93/leadhub/shared/middleware"
	"github.com/pavitra93/leadhub/shared/repository"
	"github.com/pavitra93/leadhub/shared/utils"
)

// Deps are the collaborators of the identity handlers
type Deps struct {
	Users   repository.UserStore
	Tenants repository.TenantStore
	Tokens  *utils.TokenManager
}

// RegisterRoutes mounts the identity routes under rg
func RegisterRoutes(rg *gin.RouterGroup, d Deps, auth *middleware.AuthMiddleware) {
	identity := rg.Group("/identity")
	identity.POST("/login", handleLogin(d))

	authed := identity.Group("", auth.RequireAuth(), auth.ResolveScope())
	{
		authed.POST("", handleCreateIdentity(d))
		authed.GET("", handleListIdentities(d))
		authed.POST("/verify", handleVerify())
		authed.GET("/:id", handleGetIdentity(d))
		authed.PATCH("/:id/role", handleChangeRole(d))
		authed.PATCH("/:id/profile", handleUpdateProfile(d))
		authed.PATCH("/:id/password", handleChangePassword(d))
		authed.DELETE("/:id", handleDeleteIdentity(d))
	}
}
