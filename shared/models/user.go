package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the privilege level of an identity
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleOwner      Role = "owner"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

var roleRank = map[Role]int{
	RoleUser:       1,
	RoleAdmin:      2,
	RoleOwner:      3,
	RoleSuperAdmin: 4,
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank returns the position of r on the privilege ladder, 0 for unknown roles
func (r Role) Rank() int {
	return roleRank[r]
}

// AtLeast reports whether r is as privileged as other
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.Rank() >= other.Rank()
}

// ParseRole converts client input into a Role. An empty string yields RoleUser.
func ParseRole(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RoleUser, true
	}
	r := Role(s)
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// User represents an identity. Every role except SUPER_ADMIN belongs to a tenant.
// idx_users_tenant_email does not cover rows with a NULL tenant_id, so a tenant
// identity reusing a SUPER_ADMIN email is rejected by UserStore.EmailTaken.
type User struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name           string     `json:"name" gorm:"not null"`
	Email          string     `json:"email" gorm:"not null;uniqueIndex:idx_users_tenant_email"`
	Phone          string     `json:"phone"`
	PasswordHash   string     `json:"-" gorm:"column:password_hash;not null"`
	Role           Role       `json:"role" gorm:"type:varchar(32);not null;default:user"`
	RoleAssignedBy *uuid.UUID `json:"role_assigned_by,omitempty" gorm:"type:uuid"`
	TenantID       *uuid.UUID `json:"tenant_id,omitempty" gorm:"type:uuid;index;uniqueIndex:idx_users_tenant_email"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsSuperAdmin reports whether the identity has platform-wide access
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// BelongsTo reports whether the identity is bound to tenantID
func (u *User) BelongsTo(tenantID uuid.UUID) bool {
	return u.TenantID != nil && *u.TenantID == tenantID
}

// NormalizeEmail is applied to every email before it is stored or looked up
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserSummary is the identity view returned at login
type UserSummary struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     Role       `json:"role"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
}

// Summary returns the login view of u
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		TenantID: u.TenantID,
	}
}
