package policy

import (
	"github.com/google/uuid"

	"github.com/pavitra93/leadhub/shared/models"
)

// Scope restricts store queries to the records a caller may see.
// The zero value matches nothing.
type Scope struct {
	all      bool
	tenantID uuid.UUID
}

// Unrestricted returns a scope spanning every tenant
func Unrestricted() Scope {
	return Scope{all: true}
}

// ForTenant returns a scope limited to one tenant
func ForTenant(tenantID uuid.UUID) Scope {
	return Scope{tenantID: tenantID}
}

// ResolveScope derives the data filter for caller. SUPER_ADMIN sees every tenant,
// everyone else sees their own. A caller without a tenant sees nothing.
func ResolveScope(caller *models.User) Scope {
	switch {
	case caller == nil:
		return Scope{}
	case caller.IsSuperAdmin():
		return Unrestricted()
	case caller.TenantID == nil:
		return Scope{}
	default:
		return ForTenant(*caller.TenantID)
	}
}

// IsUnrestricted reports whether the scope spans every tenant
func (s Scope) IsUnrestricted() bool {
	return s.all
}

// TenantID returns the tenant the scope is limited to. The second result is
// false for unrestricted scopes.
func (s Scope) TenantID() (uuid.UUID, bool) {
	return s.tenantID, !s.all
}

// Allows reports whether a record owned by tenantID is visible in the scope
func (s Scope) Allows(tenantID *uuid.UUID) bool {
	if s.all {
		return true
	}
	return tenantID != nil && s.tenantID != uuid.Nil && *tenantID == s.tenantID
}

func (s Scope) String() string {
	if s.all {
		return "all"
	}
	return "tenant:" + s.tenantID.String()
}
