package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/policy"
)

// UserRepository is the gorm implementation of UserStore
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = models.NormalizeEmail(user.Email)
	return translate(r.db.WithContext(ctx).Create(user).Error, "User")
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err, "User")
	}
	return &user, nil
}

// FindByEmail returns every identity using email. Emails are unique per tenant,
// so the same address can appear once in each tenant.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", models.NormalizeEmail(email)).
		Order("created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, translate(err, "User")
	}
	return users, nil
}

// EmailTaken reports whether another identity in tenantID, or a tenant-less
// SUPER_ADMIN, already uses email
func (r *UserRepository) EmailTaken(ctx context.Context, tenantID uuid.UUID, email string, exclude uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ? AND (tenant_id = ? OR tenant_id IS NULL)", models.NormalizeEmail(email), tenantID)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, translate(err, "User")
	}
	return count > 0, nil
}

func (r *UserRepository) HasSuperAdmin(ctx context.Context) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleSuperAdmin).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "User")
	}
	return count > 0, nil
}

func (r *UserRepository) List(ctx context.Context, scope policy.Scope) ([]models.User, error) {
	var users []models.User
	err := scoped(r.db.WithContext(ctx), scope, "tenant_id").
		Order("created_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, translate(err, "User")
	}
	return users, nil
}

func (r *UserRepository) Get(ctx context.Context, scope policy.Scope, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := scoped(r.db.WithContext(ctx), scope, "tenant_id").
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, translate(err, "User")
	}
	return &user, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, scope policy.Scope, id uuid.UUID, role models.Role, assignedBy uuid.UUID) (*models.User, error) {
	result := scoped(r.db.WithContext(ctx).Model(&models.User{}), scope, "tenant_id").
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"role":             role,
			"role_assigned_by": assignedBy,
		})
	if result.Error != nil {
		return nil, translate(result.Error, "User")
	}
	if result.RowsAffected == 0 {
		return nil, translate(gorm.ErrRecordNotFound, "User")
	}
	return r.Get(ctx, scope, id)
}

// UpdateProfile writes name, email and phone of user
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"name":  user.Name,
			"email": user.Email,
			"phone": user.Phone,
		})
	if result.Error != nil {
		return translate(result.Error, "User")
	}
	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "User")
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", hash)
	if result.Error != nil {
		return translate(result.Error, "User")
	}
	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "User")
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, scope policy.Scope, id uuid.UUID) error {
	result := scoped(r.db.WithContext(ctx), scope, "tenant_id").
		Where("id = ?", id).
		Delete(&models.User{})
	if result.Error != nil {
		return translate(result.Error, "User")
	}
	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "User")
	}
	return nil
}
