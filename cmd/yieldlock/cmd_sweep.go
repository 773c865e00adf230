package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// sweepCmd runs a single maturity sweep, for cron-driven deployments
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Finalize all vaults whose lock has ended, then exit",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := initApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() { _ = application.Shutdown(context.Background()) }()

	res, ran, err := application.Sweeper.Tick(ctx)
	if err != nil {
		return err
	}
	if !ran {
		fmt.Fprintln(cmd.OutOrStdout(), "Another sweep holds the lease, nothing done")
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
