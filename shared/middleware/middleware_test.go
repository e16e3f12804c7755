package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/repository/memory"
	"github.com/pavitra93/leadhub/shared/utils"
)

type fixture struct {
	store  *memory.Store
	tokens *utils.TokenManager
	auth   *AuthMiddleware
	tenant *models.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	tenant := &models.Tenant{Name: "Acme", Slug: "acme", IsActive: true}
	require.NoError(t, store.Tenants().Create(context.Background(), tenant))

	tokens := utils.NewTokenManager("test-secret", "leadhub", time.Hour)
	return &fixture{
		store:  store,
		tokens: tokens,
		auth:   NewAuthMiddleware(tokens, store.Users(), store.Tenants()),
		tenant: tenant,
	}
}

func (f *fixture) addUser(t *testing.T, role models.Role, tenantID *uuid.UUID) (*models.User, string) {
	t.Helper()
	user := &models.User{Name: string(role), Email: uuid.NewString() + "@acme.test", Role: role, TenantID: tenantID}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	token, _, err := f.tokens.Issue(user)
	require.NoError(t, err)
	return user, token
}

func (f *fixture) router() *gin.Engine {
	r := gin.New()
	protected := r.Group("/", f.auth.RequireAuth(), f.auth.ResolveScope())
	protected.GET("/me", func(c *gin.Context) {
		user, _ := GetIdentity(c)
		scope := GetScope(c)
		c.JSON(http.StatusOK, gin.H{
			"id":        user.ID,
			"role":      c.GetString(ContextRole),
			"tenant_id": c.GetString(ContextTenantID),
			"all":       scope.IsUnrestricted(),
		})
	})
	protected.GET("/admin", f.auth.RequireSuperAdmin(policy.ActionListTenants), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doRequest(r http.Handler, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error
}

func TestRequireAuthRejections(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	deleted, deletedToken := f.addUser(t, models.RoleUser, &f.tenant.ID)
	require.NoError(t, f.store.Users().Delete(context.Background(), policy.Unrestricted(), deleted.ID))

	other := utils.NewTokenManager("other-secret", "leadhub", time.Hour)
	user, _ := f.addUser(t, models.RoleUser, &f.tenant.ID)
	forged, _, err := other.Issue(user)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing", "", "Token missing"},
		{"wrong scheme", "Token abc", "Invalid token"},
		{"empty bearer", "Bearer ", "Invalid token"},
		{"malformed", "Bearer abc.def", "Invalid token"},
		{"bad signature", "Bearer " + forged, "Invalid token signature"},
		{"deleted identity", "Bearer " + deletedToken, "User not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, "/me", tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.message, errorMessage(t, w))
		})
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	f := newFixture(t)
	user, _ := f.addUser(t, models.RoleUser, &f.tenant.ID)

	short := utils.NewTokenManager("test-secret", "leadhub", -time.Minute)
	expired, _, err := short.Issue(user)
	require.NoError(t, err)

	w := doRequest(f.router(), http.MethodGet, "/me", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token expired", errorMessage(t, w))
}

func TestRequireAuthAttachesLiveIdentity(t *testing.T) {
	f := newFixture(t)
	user, token := f.addUser(t, models.RoleUser, &f.tenant.ID)

	_, err := f.store.Users().UpdateRole(context.Background(), policy.Unrestricted(), user.ID, models.RoleAdmin, uuid.New())
	require.NoError(t, err)

	w := doRequest(f.router(), http.MethodGet, "/me", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "admin", body["role"], "role comes from the store, not the token")
	assert.Equal(t, f.tenant.ID.String(), body["tenant_id"])
	assert.Equal(t, false, body["all"])
}

func TestDisabledTenantIsForbidden(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser(t, models.RoleOwner, &f.tenant.ID)
	_, superToken := f.addUser(t, models.RoleSuperAdmin, nil)

	_, err := f.store.Tenants().SetActive(context.Background(), f.tenant.ID, false)
	require.NoError(t, err)

	w := doRequest(f.router(), http.MethodGet, "/me", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Tenant is disabled", errorMessage(t, w))

	w = doRequest(f.router(), http.MethodGet, "/me", "Bearer "+superToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdentityWithoutTenantIsForbidden(t *testing.T) {
	f := newFixture(t)
	_, token := f.addUser(t, models.RoleAdmin, nil)

	w := doRequest(f.router(), http.MethodGet, "/me", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireSuperAdmin(t *testing.T) {
	f := newFixture(t)
	_, ownerToken := f.addUser(t, models.RoleOwner, &f.tenant.ID)
	_, superToken := f.addUser(t, models.RoleSuperAdmin, nil)
	r := f.router()

	assert.Equal(t, http.StatusForbidden, doRequest(r, http.MethodGet, "/admin", "Bearer "+ownerToken).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/admin", "bearer "+superToken).Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodGet, "/admin", "").Code)

	w := doRequest(r, http.MethodGet, "/me", "Bearer "+superToken)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["all"])
}

func TestGetScopeWithoutResolverMatchesNothing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	scope := GetScope(c)
	id := uuid.New()
	assert.False(t, scope.Allows(&id))
	_, ok := GetIdentity(c)
	assert.False(t, ok)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client, err := utils.NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	r := gin.New()
	r.POST("/submit", RateLimit(utils.NewRateLimiter(client, "test", 2, time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/submit", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/submit", "").Code)
	w := doRequest(r, http.MethodPost, "/submit", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests", errorMessage(t, w))

	mr.Close()
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/submit", "").Code, "fails open")
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/submit", RateLimit(nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/submit", "").Code)
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.acme.test"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://app.acme.test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.acme.test", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/teapot", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	assert.Equal(t, http.StatusTeapot, doRequest(r, http.MethodGet, "/teapot", "").Code)
}
