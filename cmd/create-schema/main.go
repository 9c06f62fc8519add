package main

import (
	"context"
	"fmt"
	"os"

	"casecite-backend/app"
	"casecite-backend/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reset bool

	rootCmd = &cobra.Command{
		Use:   "create-schema",
		Short: "Create the judgment index, rate counter, utility and API client tables",
		RunE:  run,
	}
)

// tables are dropped in reverse order on --reset
var tables = []string{"judgment_chunks", "rate_counters", "variant_utility", "api_clients"}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS judgment_chunks (
    id UUID PRIMARY KEY,
    doc_id VARCHAR(255) NOT NULL,
    chunk_index INTEGER NOT NULL,
    chunk_text TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    court VARCHAR(100) NOT NULL DEFAULT '',
    judgment_date DATE,
    citations TEXT[],
    source_version VARCHAR(100) NOT NULL DEFAULT '',
    metadata JSONB DEFAULT '{}'::jsonb,
    embedding vector(768) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE (doc_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_judgment_chunks_embedding
    ON judgment_chunks USING hnsw (embedding vector_cosine_ops);
CREATE INDEX IF NOT EXISTS idx_judgment_chunks_court ON judgment_chunks (court);
CREATE INDEX IF NOT EXISTS idx_judgment_chunks_date ON judgment_chunks (judgment_date);

CREATE TABLE IF NOT EXISTS rate_counters (
    counter_key VARCHAR(255) NOT NULL,
    window_start TIMESTAMP WITH TIME ZONE NOT NULL,
    hits BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (counter_key, window_start)
);

CREATE TABLE IF NOT EXISTS variant_utility (
    canonical_key TEXT PRIMARY KEY,
    attempts INTEGER NOT NULL DEFAULT 0,
    mean_utility DOUBLE PRECISION NOT NULL DEFAULT 0,
    case_like_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    statute_like_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    challenge_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    timeout_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS api_clients (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(255) NOT NULL,
    key_prefix VARCHAR(64) NOT NULL UNIQUE,
    key_hash TEXT NOT NULL,
    rate_limit_per_min INTEGER NOT NULL DEFAULT 0,
    disabled BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    last_used_at TIMESTAMP WITH TIME ZONE
);
`

func init() {
	rootCmd.Flags().BoolVar(&reset, "reset", false, "Drop existing tables first (destroys indexed data)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := app.InitPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if reset {
		for i := len(tables) - 1; i >= 0; i-- {
			if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+tables[i]+" CASCADE"); err != nil {
				return fmt.Errorf("failed to drop %s: %w", tables[i], err)
			}
			logger.Info("Dropped table", zap.String("table", tables[i]))
		}
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	logger.Info("Schema ready", zap.Strings("tables", tables))
	return nil
}
