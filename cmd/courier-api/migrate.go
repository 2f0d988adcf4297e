// README: migrate subcommand; applies embedded schema migrations.
package main

import (
	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/infra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log, err := infra.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if err := infra.Migrate(cfg.DB.DSN); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
