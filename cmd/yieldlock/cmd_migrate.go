package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"yieldlock/internal/config"
	"yieldlock/internal/util"
	"yieldlock/pkg/db"
)

// migrateCmd applies the embedded schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	util.InitLogger(cfg.LogLevel)
	logger := util.GetLogger()

	ctx := cmd.Context()
	database, err := db.NewPostgresDB(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	applied, err := db.Migrate(ctx, database, logger)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
		return nil
	}
	for _, version := range applied {
		fmt.Fprintln(cmd.OutOrStdout(), "Applied", version)
	}
	return nil
}
