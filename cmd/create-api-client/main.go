package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"casecite-backend/app"
	"casecite-backend/config"
	"casecite-backend/models"
	"casecite-backend/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	clientName    string
	rateLimit     int
	disablePrefix string

	rootCmd = &cobra.Command{
		Use:   "create-api-client",
		Short: "Register an API client and print its key",
		Long: `Creates an api_clients row and prints the key once. Only the bcrypt
hash of the secret half is stored, so a lost key has to be reissued.`,
		RunE: run,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&clientName, "name", "n", "", "Client name")
	rootCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "Requests per minute (0 uses the server default)")
	rootCmd.Flags().StringVar(&disablePrefix, "disable", "", "Disable the client with this key prefix instead of creating one")
	rootCmd.MarkFlagsOneRequired("name", "disable")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if rateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := app.InitPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	repo := repository.NewAPIClientRepository(pool)

	if disablePrefix != "" {
		client, err := repo.GetByKeyPrefix(ctx, disablePrefix)
		if err != nil {
			return err
		}
		if err := repo.SetDisabled(ctx, client.ID, true); err != nil {
			return err
		}
		logger.Info("API client disabled", zap.String("id", client.ID.String()), zap.String("name", client.Name))
		return nil
	}

	prefix, err := randomHex(6)
	if err != nil {
		return fmt.Errorf("failed to generate key prefix: %w", err)
	}
	secret, err := randomHex(24)
	if err != nil {
		return fmt.Errorf("failed to generate key secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}

	client := &models.APIClient{
		Name:            clientName,
		KeyPrefix:       "cc" + prefix,
		KeyHash:         string(hash),
		RateLimitPerMin: rateLimit,
	}
	if err := repo.Create(ctx, client); err != nil {
		return err
	}
	logger.Info("API client created", zap.String("id", client.ID.String()), zap.String("name", client.Name))

	fmt.Fprintf(cmd.OutOrStdout(), "API key (shown once): %s.%s\n", client.KeyPrefix, secret)
	return nil
}
