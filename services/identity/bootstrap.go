package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/leadhub/shared/config"
	"github.com/pavitra93/leadhub/shared/models"
	"github.com/pavitra93/leadhub/shared/repository"
	"github.com/pavitra93/leadhub/shared/utils"
)

// EnsureSuperAdmin creates the platform account from cfg when no SUPER_ADMIN exists yet
func EnsureSuperAdmin(ctx context.Context, users repository.UserStore, cfg config.SuperAdminConfig) error {
	if !cfg.Enabled() {
		return nil
	}

	exists, err := users.HasSuperAdmin(ctx)
	if err != nil {
		return fmt.Errorf("failed to look up super admin: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := utils.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to hash super admin password: %w", err)
	}

	user := models.User{
		ID:           uuid.New(),
		Name:         cfg.Name,
		Email:        models.NormalizeEmail(cfg.Email),
		PasswordHash: hash,
		Role:         models.RoleSuperAdmin,
	}
	if err := users.Create(ctx, &user); err != nil {
		return fmt.Errorf("failed to create super admin: %w", err)
	}

	logrus.WithField("email", user.Email).Info("Super admin account created")
	return nil
}
