package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"yieldlock/internal/api/middleware"
	"yieldlock/internal/config"
)

var (
	tokenRole string
	tokenTTL  time.Duration
)

// tokenCmd signs a bearer token with JWT_SECRET, for local use and scripts
var tokenCmd = &cobra.Command{
	Use:   "token <account>",
	Short: "Print a signed bearer token for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "Role claim, e.g. admin")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	token, err := middleware.IssueToken([]byte(cfg.JWTSecret), args[0], tokenRole, tokenTTL)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
