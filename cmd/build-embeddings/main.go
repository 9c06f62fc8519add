package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casecite-backend/app"
	"casecite-backend/config"
	"casecite-backend/ingest"
	"casecite-backend/providers/gemini"
	"casecite-backend/repository"
	"casecite-backend/vectorstore"

	"github.com/google/generative-ai-go/genai"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var (
	corpusPath   string
	backend      string
	chunkWords   int
	overlapWords int
	pause        time.Duration

	rootCmd = &cobra.Command{
		Use:   "build-embeddings",
		Short: "Chunk, embed and index a JSONL judgment corpus",
		Long: `Reads one judgment per line from the corpus file, splits each into
overlapping word windows, embeds them with Gemini and writes them to the
configured vector backend. Documents already present in pgvector are skipped.`,
		RunE: run,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&corpusPath, "corpus", "c", "./corpus/judgments.jsonl", "Path to the JSONL corpus")
	rootCmd.Flags().StringVar(&backend, "backend", "", "Vector backend override (pgvector or weaviate)")
	rootCmd.Flags().IntVar(&chunkWords, "chunk-words", ingest.DefaultChunkWords, "Words per chunk")
	rootCmd.Flags().IntVar(&overlapWords, "overlap-words", ingest.DefaultOverlapWords, "Words shared by consecutive chunks")
	rootCmd.Flags().DurationVar(&pause, "pause", 2*time.Second, "Minimum spacing between documents")
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

	if backend != "" {
		cfg.VectorBackend = backend
	}
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()
	embedder := gemini.NewEmbedder(client, cfg.EmbeddingModel, genai.TaskTypeRetrievalDocument,
		gemini.EmbedWithLogger(logger),
		gemini.EmbedWithRetries(3, 2*time.Second),
	)

	sink, cleanup, err := openSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := os.Open(corpusPath)
	if err != nil {
		return fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	logger.Info("Building judgment embeddings",
		zap.String("corpus", corpusPath),
		zap.String("backend", cfg.VectorBackend),
		zap.Int("chunk_words", chunkWords),
	)
	start := time.Now()
	in := ingest.New(embedder, sink,
		ingest.WithChunking(chunkWords, overlapWords),
		ingest.WithPause(pause),
		ingest.WithLogger(logger),
	)
	stats, err := in.Run(ctx, f)
	logger.Info("Embedding build finished",
		zap.Int("documents", stats.Documents),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("chunks", stats.Chunks),
		zap.Duration("elapsed", time.Since(start)),
	)
	return err
}

func openSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ingest.Sink, func(), error) {
	switch cfg.VectorBackend {
	case config.VectorPGVector:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the pgvector backend")
		}
		pool, err := app.InitPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return ingest.PGVectorSink{Repo: repository.NewJudgmentChunkRepository(pool)}, pool.Close, nil
	case config.VectorWeaviate:
		store, err := vectorstore.NewWeaviateStoreFromURL(cfg.WeaviateURL,
			vectorstore.WithClassName(cfg.WeaviateClass),
			vectorstore.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to ensure Weaviate schema: %w", err)
		}
		return ingest.WeaviateSink{Upserter: store}, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported vector backend %q", cfg.VectorBackend)
}
