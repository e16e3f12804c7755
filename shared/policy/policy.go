// Package policy holds the role hierarchy. Handlers never compare roles
// themselves; they ask this package.
package policy

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/utils"
)

// Action is a tenant-level operation reserved for SUPER_ADMIN
type Action string

const (
	ActionCreateTenant Action = "tenant:create"
	ActionListTenants  Action = "tenant:list"
	ActionReadTenant   Action = "tenant:read"
	ActionToggleTenant Action = "tenant:toggle"
	ActionDeleteTenant Action = "tenant:delete"
	ActionViewOverview Action = "overview:read"
)

// creationCeiling is the highest role each role may hand out when creating an identity
var creationCeiling = map[models.Role]models.Role{
	models.RoleSuperAdmin: models.RoleOwner,
	models.RoleOwner:      models.RoleAdmin,
	models.RoleAdmin:      models.RoleUser,
}

// assignCeiling is the highest role each role may set on an existing identity
var assignCeiling = map[models.Role]models.Role{
	models.RoleSuperAdmin: models.RoleOwner,
	models.RoleOwner:      models.RoleAdmin,
}

// AuthorizeTenantAction allows tenant-level operations for SUPER_ADMIN only
func AuthorizeTenantAction(caller *models.User, action Action) error {
	if caller == nil || !caller.IsSuperAdmin() {
		return utils.AuthorizationError("Access denied")
	}
	return nil
}

// RoleCeiling returns the highest role caller may assign to a new identity
func RoleCeiling(caller *models.User) (models.Role, bool) {
	if caller == nil {
		return "", false
	}
	role, ok := creationCeiling[caller.Role]
	return role, ok
}

// CreatableRoles lists the roles caller may assign to a new identity, lowest first
func CreatableRoles(caller *models.User) []models.Role {
	ceiling, ok := RoleCeiling(caller)
	if !ok {
		return nil
	}
	var roles []models.Role
	for _, r := range []models.Role{models.RoleUser, models.RoleAdmin, models.RoleOwner} {
		if r.Rank() <= ceiling.Rank() {
			roles = append(roles, r)
		}
	}
	return roles
}

// CreateIdentityRequest is the part of a create request the policy decides on
type CreateIdentityRequest struct {
	Role     string
	TenantID *uuid.UUID
}

// Grant is the role and tenant a new identity will be created with
type Grant struct {
	Role     models.Role
	TenantID uuid.UUID
}

// AuthorizeCreateIdentity decides whether caller may create an identity with the
// requested role and tenant. Non-super callers always create inside their own tenant.
func AuthorizeCreateIdentity(caller *models.User, req CreateIdentityRequest) (Grant, error) {
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return Grant{}, utils.ValidationError("Invalid role")
	}

	ceiling, ok := RoleCeiling(caller)
	if !ok {
		return Grant{}, utils.AuthorizationError("Not allowed to create users")
	}
	if role.Rank() > ceiling.Rank() {
		return Grant{}, utils.AuthorizationError("Not allowed to assign role " + string(role))
	}

	if caller.IsSuperAdmin() {
		if req.TenantID == nil || *req.TenantID == uuid.Nil {
			return Grant{}, utils.ValidationError("tenant_id is required")
		}
		return Grant{Role: role, TenantID: *req.TenantID}, nil
	}

	if caller.TenantID == nil {
		return Grant{}, utils.AuthorizationError("Company not assigned")
	}
	if req.TenantID != nil && *req.TenantID != *caller.TenantID {
		return Grant{}, utils.AuthorizationError("Cannot create users in another company")
	}
	return Grant{Role: role, TenantID: *caller.TenantID}, nil
}

// CheckRoleAssigner decides, before any target is looked up, whether caller may
// hand out the requested role. An owner may never hand out the owner role.
func CheckRoleAssigner(caller *models.User, requested string) (models.Role, error) {
	ceiling, ok := assignCeiling[callerRole(caller)]
	if !ok {
		return "", utils.AuthorizationError("Not allowed to change roles")
	}

	requested = strings.TrimSpace(requested)
	role := models.Role(requested)
	if requested == "" || !role.Valid() {
		return "", utils.ValidationError("Invalid role")
	}
	if role.Rank() > ceiling.Rank() {
		return "", utils.AuthorizationError("Not allowed to assign role " + requested)
	}
	return role, nil
}

// AuthorizeRoleChange decides whether caller may set target's role to requested
func AuthorizeRoleChange(caller, target *models.User, requested string) (models.Role, error) {
	role, err := CheckRoleAssigner(caller, requested)
	if err != nil {
		return "", err
	}
	if err := checkTarget(caller, target); err != nil {
		return "", err
	}
	return role, nil
}

// CheckIdentityDeleter decides, before any target is looked up, whether caller
// may delete identities at all
func CheckIdentityDeleter(caller *models.User) error {
	switch callerRole(caller) {
	case models.RoleSuperAdmin, models.RoleOwner:
		return nil
	default:
		return utils.AuthorizationError("Not allowed to delete users")
	}
}

// AuthorizeDeleteIdentity decides whether caller may delete target
func AuthorizeDeleteIdentity(caller, target *models.User) error {
	if err := CheckIdentityDeleter(caller); err != nil {
		return err
	}
	return checkTarget(caller, target)
}

// EmailChecker reports whether an email is already used inside a tenant
type EmailChecker interface {
	EmailTaken(ctx context.Context, tenantID uuid.UUID, email string, exclude uuid.UUID) (bool, error)
}

// GuardDuplicateIdentity rejects an email already used in tenantID or held by a
// SUPER_ADMIN. Other emails are unique per tenant, not globally.
func GuardDuplicateIdentity(ctx context.Context, checker EmailChecker, tenantID uuid.UUID, email string, exclude uuid.UUID) error {
	taken, err := checker.EmailTaken(ctx, tenantID, email, exclude)
	if err != nil {
		return err
	}
	if taken {
		return utils.ConflictError("User already exists")
	}
	return nil
}

// AuthorizeSelfService allows profile and password changes on the caller's own record only
func AuthorizeSelfService(caller *models.User, targetID uuid.UUID) error {
	if caller == nil || caller.ID != targetID {
		return utils.AuthorizationError("Can only modify your own account")
	}
	return nil
}

// checkTarget rejects targets outside the caller's scope and SUPER_ADMIN targets
func checkTarget(caller, target *models.User) error {
	if target == nil {
		return utils.NotFoundError("User not found")
	}
	if target.IsSuperAdmin() {
		return utils.AuthorizationError("Super admin accounts cannot be modified")
	}
	if !ResolveScope(caller).Allows(target.TenantID) {
		return utils.AuthorizationError("User belongs to another company")
	}
	return nil
}

func callerRole(caller *models.User) models.Role {
	if caller == nil {
		return ""
	}
	return caller.Role
}
