package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/policy"
	"github.com/pavitra93/leadhub/shared/utils"
)

// LeadRepository is the gorm implementation of LeadStore
type LeadRepository struct {
	db *gorm.DB
}

// NewLeadRepository creates a lead repository
func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(lead).Error, "Lead")
}

// List returns leads in scope matching filter, newest first
func (r *LeadRepository) List(ctx context.Context, scope policy.Scope, filter LeadFilter) ([]models.Lead, error) {
	query := applyLeadFilter(scoped(r.db.WithContext(ctx), scope, "tenant_id"), filter).
		Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var leads []models.Lead
	if err := query.Find(&leads).Error; err != nil {
		return nil, translate(err, "Lead")
	}
	return leads, nil
}

func (r *LeadRepository) Count(ctx context.Context, scope policy.Scope, filter LeadFilter) (int64, error) {
	var count int64
	err := applyLeadFilter(scoped(r.db.WithContext(ctx).Model(&models.Lead{}), scope, "tenant_id"), filter).
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "Lead")
	}
	return count, nil
}

func (r *LeadRepository) Get(ctx context.Context, scope policy.Scope, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	err := scoped(r.db.WithContext(ctx), scope, "tenant_id").
		Where("id = ?", id).
		First(&lead).Error
	if err != nil {
		return nil, translate(err, "Lead")
	}
	return &lead, nil
}

func (r *LeadRepository) Delete(ctx context.Context, scope policy.Scope, id uuid.UUID) error {
	result := scoped(r.db.WithContext(ctx), scope, "tenant_id").
		Where("id = ?", id).
		Delete(&models.Lead{})
	if result.Error != nil {
		return translate(result.Error, "Lead")
	}
	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "Lead")
	}
	return nil
}

// DeleteMany removes the leads in ids that are visible in scope and returns how many went
func (r *LeadRepository) DeleteMany(ctx context.Context, scope policy.Scope, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, utils.ValidationError("No leads selected")
	}
	result := scoped(r.db.WithContext(ctx), scope, "tenant_id").
		Where("id IN ?", ids).
		Delete(&models.Lead{})
	if result.Error != nil {
		return 0, translate(result.Error, "Lead")
	}
	return result.RowsAffected, nil
}

func applyLeadFilter(db *gorm.DB, filter LeadFilter) *gorm.DB {
	if filter.Type != "" {
		db = db.Where("lead_type = ?", filter.Type)
	}
	if source := strings.TrimSpace(filter.Source); source != "" {
		if strings.EqualFold(source, utils.DefaultUTMSource) {
			db = db.Where("(utm_source IS NULL OR utm_source = '' OR LOWER(utm_source) = ?)", utils.DefaultUTMSource)
		} else {
			db = db.Where("LOWER(utm_source) = ?", strings.ToLower(source))
		}
	}
	if filter.From != nil {
		db = db.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("created_at < ?", *filter.To)
	}
	return db
}
