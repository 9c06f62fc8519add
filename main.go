package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"casecite-backend/app"
	"casecite-backend/config"
	"casecite-backend/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	debug      bool
	maxResults int

	rootCmd = &cobra.Command{
		Use:   "casecite [query]",
		Short: "Run one case search and print the response as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  run,
	}
)

func init() {
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Include diagnostics in the response")
	rootCmd.Flags().IntVarP(&maxResults, "max-results", "n", 0, "Maximum results per tier (0 uses the configured default)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	for _, w := range cfg.Validate() {
		logger.Warn("Config adjusted", zap.String("detail", w))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.Search.Search(ctx, models.CaseSearchRequest{
		Query:      strings.Join(args, " "),
		MaxResults: maxResults,
		Debug:      debug,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
