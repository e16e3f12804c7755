package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/policy"
)

const tenantLeadStatsQuery = `
SELECT t.id, t.name, t.slug, t.is_active,
       (SELECT COUNT(*) FROM users u WHERE u.tenant_id = t.id) AS users_count,
       COUNT(l.id) AS total_leads,
       COUNT(l.id) FILTER (WHERE l.created_at >= ?) AS today_leads
FROM tenants t
LEFT JOIN leads l ON l.tenant_id = t.id
GROUP BY t.id, t.name, t.slug, t.is_active
ORDER BY total_leads DESC, t.name ASC`

// StatsRepository is the gorm implementation of StatsStore
type StatsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a stats repository
func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) CountTenants(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Tenant{}).Count(&count).Error; err != nil {
		return 0, translate(err, "Tenant")
	}
	return count, nil
}

func (r *StatsRepository) CountUsers(ctx context.Context, scope policy.Scope) (int64, error) {
	var count int64
	err := scoped(r.db.WithContext(ctx).Model(&models.User{}), scope, "tenant_id").
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "User")
	}
	return count, nil
}

// TenantLeadStats returns lead totals per tenant, including tenants without leads
func (r *StatsRepository) TenantLeadStats(ctx context.Context, since time.Time) ([]TenantStats, error) {
	var rows []TenantStats
	if err := r.db.WithContext(ctx).Raw(tenantLeadStatsQuery, since).Scan(&rows).Error; err != nil {
		return nil, translate(err, "Tenant")
	}
	return rows, nil
}
