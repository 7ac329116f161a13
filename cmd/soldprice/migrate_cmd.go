package main

import (
	"github.com/spf13/cobra"

	"github.com/user/soldprice-service/internal/adapter/postgres"
	"github.com/user/soldprice-service/pkg/config"
	"github.com/user/soldprice-service/pkg/logger"
)

func newMigrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{postgres.MigrateUp, postgres.MigrateDown},
		RunE: func(_ *cobra.Command, args []string) error {
			direction := postgres.MigrateUp
			if len(args) == 1 {
				direction = args[0]
			}
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return postgres.Migrate(cfg.PostgresURL(), direction, log)
		},
	}
}
