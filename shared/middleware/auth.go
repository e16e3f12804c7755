package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/repository"
	"github.com/pavitra93/leadhub/shared/utils"
)

// Context keys set by the auth middleware
const (
	ContextIdentity = "identity"
	ContextScope    = "scope"
	ContextUserID   = "user_id"
	ContextTenantID = "tenant_id"
	ContextRole     = "role"
)

// AuthMiddleware verifies bearer tokens against the live identity records
type AuthMiddleware struct {
	tokens  *utils.TokenManager
	users   repository.UserStore
	tenants repository.TenantStore
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens *utils.TokenManager, users repository.UserStore, tenants repository.TenantStore) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:  tokens,
		users:   users,
		tenants: tenants,
	}
}

// RequireAuth validates the bearer token, loads the identity it names and
// attaches it to the context. Identities of disabled tenants are rejected.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := am.verify(c)
		if err != nil {
			if utils.StatusCode(err) < 500 {
				logrus.WithFields(logrus.Fields{
					"path":      c.FullPath(),
					"client_ip": c.ClientIP(),
				}).Debugf("Authentication rejected: %v", err)
			}
			utils.AbortWithError(c, err)
			return
		}

		c.Set(ContextIdentity, user)
		c.Set(ContextUserID, user.ID.String())
		c.Set(ContextRole, string(user.Role))
		if user.TenantID != nil {
			c.Set(ContextTenantID, user.TenantID.String())
		}

		c.Next()
	}
}

func (am *AuthMiddleware) verify(c *gin.Context) (*models.User, error) {
	header := c.GetHeader("Authorization")
	if strings.TrimSpace(header) == "" {
		return nil, utils.AuthenticationError("Token missing")
	}
	tokenString, ok := extractToken(header)
	if !ok {
		return nil, utils.AuthenticationError("Invalid token")
	}

	claims, err := am.tokens.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, utils.AuthenticationError("Invalid token")
	}

	ctx := c.Request.Context()
	user, err := am.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.AuthenticationError("User not found")
		}
		return nil, err
	}

	if user.IsSuperAdmin() {
		return user, nil
	}
	if user.TenantID == nil {
		return nil, utils.AuthorizationError("Tenant not assigned")
	}
	tenant, err := am.tenants.Get(ctx, *user.TenantID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.AuthorizationError("Tenant not assigned")
		}
		return nil, err
	}
	if !tenant.IsActive {
		return nil, utils.AuthorizationError("Tenant is disabled")
	}
	return user, nil
}

// ResolveScope stores the caller's data filter in the context. Must run after RequireAuth.
func (am *AuthMiddleware) ResolveScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := GetIdentity(c)
		c.Set(ContextScope, policy.ResolveScope(user))
		c.Next()
	}
}

// RequireSuperAdmin guards tenant-level operations
func (am *AuthMiddleware) RequireSuperAdmin(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := GetIdentity(c)
		if err := policy.AuthorizeTenantAction(user, action); err != nil {
			logrus.WithFields(logrus.Fields{
				"action":  action,
				"user_id": c.GetString(ContextUserID),
				"role":    c.GetString(ContextRole),
			}).Warn("Tenant-level operation denied")
			utils.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// GetIdentity returns the verified caller
func GetIdentity(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextIdentity)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

// GetScope returns the caller's data filter. Without one the zero Scope is
// returned, which matches nothing.
func GetScope(c *gin.Context) policy.Scope {
	value, exists := c.Get(ContextScope)
	if !exists {
		return policy.Scope{}
	}
	scope, _ := value.(policy.Scope)
	return scope
}

// extractToken extracts the JWT from an "Authorization: Bearer <token>" header value
func extractToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
