package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed test token",
	Long: `Mint a token for a user with the configured JWT_SECRET_KEY and ALGORITHM.
Only HMAC algorithms can sign; RS* and ES* deployments get their tokens from
the identity provider that holds the private key.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("user", "", "User ID to put in the user_id and sub claims")
	tokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	userID := mustGetString(cmd, "user")
	if userID == "" {
		return errors.New("--user is required")
	}
	ttl := mustGetDuration(cmd, "ttl")
	if ttl <= 0 {
		return errors.New("--ttl must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tokens, err := auth.NewTokenValidator(cfg.Auth.SecretKey, cfg.Auth.Algorithm)
	if err != nil {
		return fmt.Errorf("configuring token signing: %w", err)
	}

	token, err := tokens.GenerateToken(userID, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
