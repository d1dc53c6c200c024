package main

import (
	"errors"

	"github.com/mehrbod2002/masjidmap/internal/config"
	"github.com/mehrbod2002/masjidmap/internal/service"
	"github.com/spf13/cobra"
)

func newEnsureMainAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-main-admin",
		Short: "Create or promote the main admin from MAIN_ADMIN_* and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.MainAdminEmail == "" || cfg.MainAdminPassword == "" {
				return errors.New("MAIN_ADMIN_EMAIL and MAIN_ADMIN_PASSWORD are required")
			}
			logger := newLogger(cfg)

			st, err := openStores(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.close(cmd.Context())

			rt := service.Runtime{Logger: logger, Audit: service.NewLogService(st.logs), Timeout: cfg.OperationTimeout}
			account, err := config.EnsureMainAdmin(cmd.Context(), service.NewAccountService(st.accounts, rt), cfg, logger)
			if err != nil {
				return err
			}
			cmd.Printf("main admin: %s (%s)\n", account.Email, account.ID.Hex())
			return nil
		},
	}
}
