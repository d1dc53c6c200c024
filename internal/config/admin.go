package config

import (
	"context"

	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/service"
	"github.com/sirupsen/logrus"
)

// EnsureMainAdmin bootstraps the single main admin account from MAIN_ADMIN_*.
// It is a no-op when a main admin already exists.
func EnsureMainAdmin(ctx context.Context, accounts service.AccountService, cfg *Config, logger logrus.FieldLogger) (*models.Account, error) {
	if cfg.MainAdminEmail == "" {
		logger.Warn("MAIN_ADMIN_EMAIL not set; skipping main admin bootstrap")
		return nil, nil
	}
	account, created, err := accounts.EnsureMainAdmin(ctx, cfg.MainAdminName, cfg.MainAdminEmail, cfg.MainAdminPassword)
	if err != nil {
		return nil, err
	}
	if created {
		logger.WithField("email", account.Email).Info("main admin ready")
	} else {
		logger.Debug("main admin already exists")
	}
	return account, nil
}
