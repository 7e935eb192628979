package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chatd/internal/config"
	"chatd/internal/security"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <operator>",
	Short: "Print a bearer token for the operator HTTP API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		ttl := tokenTTL
		if ttl == 0 {
			ttl = time.Duration(cfg.AccessTokenMinutes) * time.Minute
		}
		tok, err := security.NewTokenService(cfg.JWTSecret, cfg.AppName, ttl).CreateForOperator(args[0])
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default ACCESS_TOKEN_EXPIRE_MINUTES)")
}
