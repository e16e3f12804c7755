package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pavitra93/leadhub/shared/models"
)

const tenantSelect = `tenants.*, (SELECT COUNT(*) FROM users WHERE users.tenant_id = tenants.id) AS users_count`

// TenantRepository is the gorm implementation of TenantStore
type TenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a tenant repository
func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(tenant).Error, "Tenant")
}

// List returns every tenant with its identity count, newest first
func (r *TenantRepository) List(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Select(tenantSelect).
		Order("tenants.created_at DESC").
		Find(&tenants).Error
	if err != nil {
		return nil, translate(err, "Tenant")
	}
	return tenants, nil
}

func (r *TenantRepository) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Select(tenantSelect).
		Where("tenants.id = ?", id).
		First(&tenant).Error
	if err != nil {
		return nil, translate(err, "Tenant")
	}
	return &tenant, nil
}

func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&tenant).Error; err != nil {
		return nil, translate(err, "Tenant")
	}
	return &tenant, nil
}

func (r *TenantRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Tenant, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return nil, translate(result.Error, "Tenant")
	}
	if result.RowsAffected == 0 {
		return nil, translate(gorm.ErrRecordNotFound, "Tenant")
	}
	return r.Get(ctx, id)
}

// Delete removes leads, identities and the tenant in one transaction
func (r *TenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", id).Delete(&models.Lead{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.User{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Tenant{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return translate(err, "Tenant")
}
