package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/leadhub/shared/config"
	"github.com/pavitra93/leadhub/shared/middleware"
	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/repository/memory"
	"github.com/pavitra93/leadhub/shared/utils"
)

const testPassword = "password123"

type env struct {
	t      *testing.T
	store  *memory.Store
	tokens *utils.TokenManager
	router *gin.Engine
	acme   *models.Tenant
	globex *models.Tenant
	hash   string
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	tokens := utils.NewTokenManager("test-secret", "leadhub", time.Hour)
	d := Deps{Users: store.Users(), Tenants: store.Tenants(), Tokens: tokens}

	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), d, middleware.NewAuthMiddleware(tokens, store.Users(), store.Tenants()))

	hash, err := utils.HashPassword(testPassword)
	require.NoError(t, err)

	e := &env{t: t, store: store, tokens: tokens, router: r, hash: hash}
	e.acme = e.addTenant("acme")
	e.globex = e.addTenant("globex")
	return e
}

func (e *env) addTenant(slug string) *models.Tenant {
	tenant := &models.Tenant{Name: strings.ToUpper(slug), Slug: slug, IsActive: true}
	require.NoError(e.t, e.store.Tenants().Create(context.Background(), tenant))
	return tenant
}

func (e *env) addUser(role models.Role, tenant *models.Tenant, email string) *models.User {
	user := &models.User{Name: string(role) + " user", Email: email, Phone: "555", PasswordHash: e.hash, Role: role}
	if tenant != nil {
		user.TenantID = &tenant.ID
	}
	require.NoError(e.t, e.store.Users().Create(context.Background(), user))
	return user
}

func (e *env) token(user *models.User) string {
	token, _, err := e.tokens.Issue(user)
	require.NoError(e.t, err)
	return token
}

func (e *env) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp envelope
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	owner := e.addUser(models.RoleOwner, e.acme, "owner@acme.test")

	w, body := e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": "OWNER@acme.test", "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code, body.Error)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(body.Data, &resp))
	assert.Equal(t, owner.ID, resp.User.ID)
	assert.Equal(t, models.RoleOwner, resp.User.Role)
	require.NotNil(t, resp.User.TenantID)
	assert.Equal(t, e.acme.ID, *resp.User.TenantID)

	claims, err := e.tokens.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, owner.ID.String(), claims.Subject)
	assert.NotContains(t, string(body.Data), "password")
}

func TestLoginFailures(t *testing.T) {
	e := newEnv(t)
	e.addUser(models.RoleOwner, e.acme, "owner@acme.test")

	w, _ := e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": "ghost@acme.test", "password": testPassword})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body := e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": "owner@acme.test", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Wrong password", body.Error)

	w, _ = e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": "owner@acme.test"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginInactiveTenant(t *testing.T) {
	e := newEnv(t)
	e.addUser(models.RoleOwner, e.acme, "owner@acme.test")
	e.addUser(models.RoleUser, e.acme, "user@acme.test")
	e.addUser(models.RoleSuperAdmin, nil, "root@leadhub.test")
	_, err := e.store.Tenants().SetActive(context.Background(), e.acme.ID, false)
	require.NoError(t, err)

	for _, email := range []string{"owner@acme.test", "user@acme.test"} {
		w, body := e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": email, "password": testPassword})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Tenant is disabled", body.Error)
	}

	w, _ := e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": "root@leadhub.test", "password": testPassword})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginSameEmailInTwoTenants(t *testing.T) {
	e := newEnv(t)
	e.addUser(models.RoleUser, e.acme, "shared@mail.test")
	inGlobex := e.addUser(models.RoleAdmin, e.globex, "shared@mail.test")

	w, _ := e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": "shared@mail.test", "password": testPassword})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": "shared@mail.test", "password": testPassword, "tenant_slug": "globex"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(body.Data, &resp))
	assert.Equal(t, inGlobex.ID, resp.User.ID)
}

func TestSuperAdminEmailIsReserved(t *testing.T) {
	e := newEnv(t)
	super := e.addUser(models.RoleSuperAdmin, nil, "root@leadhub.test")
	owner := e.addUser(models.RoleOwner, e.acme, "owner@acme.test")
	member := e.addUser(models.RoleUser, e.acme, "user@acme.test")

	w, body := e.do(http.MethodPost, "/api/v1/identity", e.token(owner),
		gin.H{"name": "Impostor", "email": "ROOT@leadhub.test", "phone": "1", "password": testPassword, "role": "user"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", body.Error)

	w, _ = e.do(http.MethodPatch, "/api/v1/identity/"+member.ID.String()+"/profile", e.token(member), gin.H{"email": "root@leadhub.test"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": "root@leadhub.test", "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code, body.Error)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(body.Data, &resp))
	assert.Equal(t, super.ID, resp.User.ID)
}

func TestLoginPrefersSuperAdminWithoutSlug(t *testing.T) {
	e := newEnv(t)
	// rows written before the reservation existed
	legacy := &models.User{Name: "Legacy", Email: "root@leadhub.test", Phone: "1", PasswordHash: e.hash, Role: models.RoleUser, TenantID: &e.acme.ID}
	require.NoError(t, e.store.Users().Create(context.Background(), legacy))
	super := e.addUser(models.RoleSuperAdmin, nil, "root@leadhub.test")

	w, body := e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": "root@leadhub.test", "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code, body.Error)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(body.Data, &resp))
	assert.Equal(t, super.ID, resp.User.ID)

	w, body = e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": "root@leadhub.test", "password": testPassword, "tenant_slug": "acme"})
	require.Equal(t, http.StatusOK, w.Code, body.Error)
	require.NoError(t, json.Unmarshal(body.Data, &resp))
	assert.Equal(t, legacy.ID, resp.User.ID)
}

func TestCreateIdentityHierarchy(t *testing.T) {
	e := newEnv(t)
	super := e.addUser(models.RoleSuperAdmin, nil, "root@leadhub.test")
	owner := e.addUser(models.RoleOwner, e.acme, "owner@acme.test")
	admin := e.addUser(models.RoleAdmin, e.acme, "admin@acme.test")
	user := e.addUser(models.RoleUser, e.acme, "user@acme.test")

	newIdentity := func(role string, tenantID *uuid.UUID) gin.H {
		body := gin.H{"name": "New", "email": uuid.NewString() + "@acme.test", "phone": "123", "password": testPassword, "role": role}
		if tenantID != nil {
			body["tenant_id"] = tenantID.String()
		}
		return body
	}
	missing := uuid.New()

	tests := []struct {
		name   string
		caller *models.User
		body   gin.H
		want   int
	}{
		{"super creates owner", super, newIdentity("owner", &e.globex.ID), http.StatusCreated},
		{"super without tenant", super, newIdentity("admin", nil), http.StatusBadRequest},
		{"super unknown tenant", super, newIdentity("admin", &missing), http.StatusNotFound},
		{"owner creates admin", owner, newIdentity("admin", nil), http.StatusCreated},
		{"owner creates owner", owner, newIdentity("owner", nil), http.StatusForbidden},
		{"owner targets other tenant", owner, newIdentity("user", &e.globex.ID), http.StatusForbidden},
		{"admin creates user", admin, newIdentity("user", nil), http.StatusCreated},
		{"admin creates admin", admin, newIdentity("admin", nil), http.StatusForbidden},
		{"admin creates owner", admin, newIdentity("owner", nil), http.StatusForbidden},
		{"user creates user", user, newIdentity("user", nil), http.StatusForbidden},
		{"unknown role", owner, newIdentity("manager", nil), http.StatusBadRequest},
		{"duplicate email", owner, gin.H{"name": "Dup", "email": "ADMIN@acme.test", "phone": "1", "password": testPassword, "role": "user"}, http.StatusBadRequest},
		{"missing phone", owner, gin.H{"name": "X", "email": "x@acme.test", "password": testPassword}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := e.do(http.MethodPost, "/api/v1/identity", e.token(tt.caller), tt.body)
			assert.Equal(t, tt.want, w.Code, body.Error)
		})
	}
}

func TestCreateThenGetOmitsPassword(t *testing.T) {
	e := newEnv(t)
	owner := e.addUser(models.RoleOwner, e.acme, "owner@acme.test")
	token := e.token(owner)

	w, body := e.do(http.MethodPost, "/api/v1/identity", token, gin.H{
		"name": "Priya", "email": "Priya@Acme.test", "phone": "98765", "password": testPassword, "role": "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, body.Error)
	assert.NotContains(t, string(body.Data), "password")

	var created models.User
	require.NoError(t, json.Unmarshal(body.Data, &created))

	w, body = e.do(http.MethodGet, "/api/v1/identity/"+created.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(body.Data), "password")

	var fetched models.User
	require.NoError(t, json.Unmarshal(body.Data, &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "Priya", fetched.Name)
	assert.Equal(t, "priya@acme.test", fetched.Email)
	assert.Equal(t, "98765", fetched.Phone)
	assert.Equal(t, models.RoleAdmin, fetched.Role)
	require.NotNil(t, fetched.RoleAssignedBy)
	assert.Equal(t, owner.ID, *fetched.RoleAssignedBy)
	require.NotNil(t, fetched.TenantID)
	assert.Equal(t, e.acme.ID, *fetched.TenantID)
	assert.Empty(t, fetched.PasswordHash)
}

func TestListIsScoped(t *testing.T) {
	e := newEnv(t)
	super := e.addUser(models.RoleSuperAdmin, nil, "root@leadhub.test")
	admin := e.addUser(models.RoleAdmin, e.acme, "admin@acme.test")
	e.addUser(models.RoleUser, e.acme, "user@acme.test")
	e.addUser(models.RoleOwner, e.globex, "owner@globex.test")

	w, body := e.do(http.MethodGet, "/api/v1/identity", e.token(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []models.User
	require.NoError(t, json.Unmarshal(body.Data, &users))
	require.Len(t, users, 2)
	for _, u := range users {
		require.NotNil(t, u.TenantID)
		assert.Equal(t, e.acme.ID, *u.TenantID)
	}

	w, body = e.do(http.MethodGet, "/api/v1/identity", e.token(super), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(body.Data, &users))
	assert.Len(t, users, 4)

	other := e.addUser(models.RoleUser, e.globex, "user@globex.test")
	w, _ = e.do(http.MethodGet, "/api/v1/identity/"+other.ID.String(), e.token(admin), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = e.do(http.MethodGet, "/api/v1/identity/not-a-uuid", e.token(admin), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangeRole(t *testing.T) {
	e := newEnv(t)
	super := e.addUser(models.RoleSuperAdmin, nil, "root@leadhub.test")
	owner := e.addUser(models.RoleOwner, e.acme, "owner@acme.test")
	admin := e.addUser(models.RoleAdmin, e.acme, "admin@acme.test")
	member := e.addUser(models.RoleUser, e.acme, "user@acme.test")
	outsider := e.addUser(models.RoleUser, e.globex, "user@globex.test")

	path := func(u *models.User) string { return "/api/v1/identity/" + u.ID.String() + "/role" }

	for _, target := range []*models.User{owner, admin, member, outsider, super} {
		w, _ := e.do(http.MethodPatch, path(target), e.token(owner), gin.H{"role": "owner"})
		assert.Equal(t, http.StatusForbidden, w.Code, "owner promoting %s", target.Email)
	}
	w, _ := e.do(http.MethodPatch, "/api/v1/identity/"+uuid.NewString()+"/role", e.token(owner), gin.H{"role": "owner"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := e.do(http.MethodPatch, path(member), e.token(owner), gin.H{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code, body.Error)
	var updated models.User
	require.NoError(t, json.Unmarshal(body.Data, &updated))
	assert.Equal(t, models.RoleAdmin, updated.Role)
	require.NotNil(t, updated.RoleAssignedBy)
	assert.Equal(t, owner.ID, *updated.RoleAssignedBy)

	w, _ = e.do(http.MethodPatch, path(outsider), e.token(owner), gin.H{"role": "admin"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = e.do(http.MethodPatch, path(member), e.token(admin), gin.H{"role": "user"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(http.MethodPatch, path(outsider), e.token(super), gin.H{"role": "owner"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(http.MethodPatch, path(member), e.token(owner), gin.H{"role": "chief"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteIdentity(t *testing.T) {
	e := newEnv(t)
	super := e.addUser(models.RoleSuperAdmin, nil, "root@leadhub.test")
	owner := e.addUser(models.RoleOwner, e.acme, "owner@acme.test")
	admin := e.addUser(models.RoleAdmin, e.acme, "admin@acme.test")
	member := e.addUser(models.RoleUser, e.acme, "user@acme.test")
	outsider := e.addUser(models.RoleUser, e.globex, "user@globex.test")

	path := func(u *models.User) string { return "/api/v1/identity/" + u.ID.String() }

	w, _ := e.do(http.MethodDelete, path(member), e.token(admin), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(http.MethodDelete, path(outsider), e.token(owner), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = e.do(http.MethodDelete, path(member), e.token(owner), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	_, err := e.store.Users().FindByID(context.Background(), member.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	w, _ = e.do(http.MethodDelete, path(outsider), e.token(super), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(http.MethodDelete, path(super), e.token(super), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeletedIdentityTokenStopsWorking(t *testing.T) {
	e := newEnv(t)
	member := e.addUser(models.RoleUser, e.acme, "user@acme.test")
	token := e.token(member)
	require.NoError(t, e.store.Users().Delete(context.Background(), policy.Unrestricted(), member.ID))

	w, body := e.do(http.MethodPost, "/api/v1/identity/verify", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "User not found", body.Error)
}

func TestVerify(t *testing.T) {
	e := newEnv(t)
	member := e.addUser(models.RoleUser, e.acme, "user@acme.test")

	w, body := e.do(http.MethodPost, "/api/v1/identity/verify", e.token(member), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Authorized bool        `json:"authorized"`
		User       models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &resp))
	assert.True(t, resp.Authorized)
	assert.Equal(t, member.ID, resp.User.ID)
	assert.NotContains(t, string(body.Data), "password")

	w, _ = e.do(http.MethodPost, "/api/v1/identity/verify", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSelfService(t *testing.T) {
	e := newEnv(t)
	member := e.addUser(models.RoleUser, e.acme, "user@acme.test")
	other := e.addUser(models.RoleUser, e.acme, "other@acme.test")
	token := e.token(member)

	w, _ := e.do(http.MethodPatch, "/api/v1/identity/"+other.ID.String()+"/profile", token, gin.H{"name": "Hacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(http.MethodPatch, "/api/v1/identity/"+member.ID.String()+"/profile", token, gin.H{"email": "other@acme.test"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := e.do(http.MethodPatch, "/api/v1/identity/"+member.ID.String()+"/profile", token, gin.H{"name": "Meera", "phone": "777"})
	require.Equal(t, http.StatusOK, w.Code, body.Error)
	stored, err := e.store.Users().FindByID(context.Background(), member.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meera", stored.Name)
	assert.Equal(t, "777", stored.Phone)
	assert.Equal(t, "user@acme.test", stored.Email)

	pwPath := "/api/v1/identity/" + member.ID.String() + "/password"
	w, body = e.do(http.MethodPatch, pwPath, token, gin.H{"current_password": "wrong", "new_password": "brand-new-pass"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Current password is incorrect", body.Error)

	w, _ = e.do(http.MethodPatch, pwPath, token, gin.H{"current_password": testPassword, "new_password": "brand-new-pass"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(http.MethodPost, "/api/v1/identity/login", "", gin.H{"email": "user@acme.test", "password": "brand-new-pass"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDisabledTenantBlocksExistingTokens(t *testing.T) {
	e := newEnv(t)
	owner := e.addUser(models.RoleOwner, e.acme, "owner@acme.test")
	token := e.token(owner)

	_, err := e.store.Tenants().SetActive(context.Background(), e.acme.ID, false)
	require.NoError(t, err)

	w, _ := e.do(http.MethodGet, "/api/v1/identity", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEnsureSuperAdmin(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, EnsureSuperAdmin(ctx, store.Users(), config.SuperAdminConfig{}))
	exists, err := store.Users().HasSuperAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	cfg := config.SuperAdminConfig{Name: "Root", Email: "Root@LeadHub.test", Password: "changeme123"}
	require.NoError(t, EnsureSuperAdmin(ctx, store.Users(), cfg))
	require.NoError(t, EnsureSuperAdmin(ctx, store.Users(), cfg))

	users, err := store.Users().FindByEmail(ctx, "root@leadhub.test")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleSuperAdmin, users[0].Role)
	assert.Nil(t, users[0].TenantID)
}
