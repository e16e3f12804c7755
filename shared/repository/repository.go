// Package repository persists tenants, identities and leads. Every read or
// delete of tenant-owned records takes a policy.Scope and applies it in the query.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/utils"
)

// TenantStore manages tenant records and their lifecycle
type TenantStore interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	List(ctx context.Context) ([]models.Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Tenant, error)
	// Delete removes the tenant together with its identities and leads
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserStore manages identities
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	// FindByID looks an identity up without a scope. Only the identity verifier
	// and self-service paths use it.
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) ([]models.User, error)
	EmailTaken(ctx context.Context, tenantID uuid.UUID, email string, exclude uuid.UUID) (bool, error)
	HasSuperAdmin(ctx context.Context) (bool, error)
	List(ctx context.Context, scope policy.Scope) ([]models.User, error)
	Get(ctx context.Context, scope policy.Scope, id uuid.UUID) (*models.User, error)
	UpdateRole(ctx context.Context, scope policy.Scope, id uuid.UUID, role models.Role, assignedBy uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, scope policy.Scope, id uuid.UUID) error
}

// LeadStore manages leads. Leads are never updated.
type LeadStore interface {
	Create(ctx context.Context, lead *models.Lead) error
	List(ctx context.Context, scope policy.Scope, filter LeadFilter) ([]models.Lead, error)
	Count(ctx context.Context, scope policy.Scope, filter LeadFilter) (int64, error)
	Get(ctx context.Context, scope policy.Scope, id uuid.UUID) (*models.Lead, error)
	Delete(ctx context.Context, scope policy.Scope, id uuid.UUID) error
	DeleteMany(ctx context.Context, scope policy.Scope, ids []uuid.UUID) (int64, error)
}

// StatsStore serves the aggregation queries that do not belong to a single store
type StatsStore interface {
	CountTenants(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context, scope policy.Scope) (int64, error)
	TenantLeadStats(ctx context.Context, since time.Time) ([]TenantStats, error)
}

// LeadFilter narrows lead listings. Zero fields are ignored.
type LeadFilter struct {
	Type   models.LeadType
	Source string
	From   *time.Time
	To     *time.Time
	Limit  int
}

// TenantStats is one row of the per-tenant overview
type TenantStats struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	IsActive   bool      `json:"is_active"`
	UsersCount int64     `json:"users_count"`
	TotalLeads int64     `json:"total_leads"`
	TodayLeads int64     `json:"today_leads"`
}

// scoped restricts db to the tenants visible in scope
func scoped(db *gorm.DB, scope policy.Scope, column string) *gorm.DB {
	if scope.IsUnrestricted() {
		return db
	}
	tenantID, _ := scope.TenantID()
	if tenantID == uuid.Nil {
		return db.Where("1 = 0")
	}
	return db.Where(column+" = ?", tenantID)
}

// translate maps gorm and postgres errors onto the API error taxonomy
func translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.NotFoundError(entity + " not found")
	case isUniqueViolation(err):
		return utils.ConflictError(entity + " already exists")
	default:
		return utils.PersistenceError(err)
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var (
	_ TenantStore = (*TenantRepository)(nil)
	_ UserStore   = (*UserRepository)(nil)
	_ LeadStore   = (*LeadRepository)(nil)
	_ StatsStore  = (*StatsRepository)(nil)
)
