// Package app assembles the search pipeline and its collaborators from
// configuration. Missing optional services disable their capability.
package app

import (
	"context"
	"fmt"
	"time"

	"casecite-backend/config"
	"casecite-backend/fusion"
	"casecite-backend/providers/gemini"
	"casecite-backend/providers/lexical"
	"casecite-backend/providers/rerank"
	"casecite-backend/ratelimit"
	"casecite-backend/repository"
	"casecite-backend/scheduler"
	"casecite-backend/service"
	"casecite-backend/storage"
	"casecite-backend/vectorstore"

	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// App holds the wired pipeline and the resources it owns
type App struct {
	Search  *service.SearchService
	Clients *repository.APIClientRepository
	Limiter *ratelimit.Limiter
	Counter *repository.RateCounterRepository
	DB      *pgxpool.Pool
	Gemini  *genai.Client

	logger *zap.Logger
}

// Build wires every collaborator the configuration enables
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}

	if cfg.DatabaseURL != "" {
		pool, err := InitPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Warn("Postgres unavailable, database-backed features disabled", zap.Error(err))
		} else {
			a.DB = pool
		}
	}

	if cfg.GeminiAPIKey != "" {
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		a.Gemini = client
		logger.Info("Gemini client initialized")
	}

	lexicalClient := lexical.NewClient(cfg.LexicalAPIToken,
		lexical.WithBaseURL(cfg.LexicalBaseURL),
		lexical.WithMaxPages(cfg.LexicalMaxPages),
		lexical.WithLogger(logger),
	)

	hybridOpts := []fusion.Option{
		fusion.WithConfig(cfg.Pipeline.Fusion),
		fusion.WithLogger(logger),
	}
	if store := a.vectorStore(ctx, cfg); store != nil && a.Gemini != nil {
		embedder := gemini.NewEmbedder(a.Gemini, cfg.EmbeddingModel, genai.TaskTypeRetrievalQuery,
			gemini.EmbedWithLogger(logger))
		hybridOpts = append(hybridOpts, fusion.WithEmbedder(embedder), fusion.WithVectorStore(store))
		logger.Info("Semantic retrieval enabled", zap.String("backend", cfg.VectorBackend))
	}
	if cfg.RerankURL != "" {
		hybridOpts = append(hybridOpts, fusion.WithReranker(rerank.NewClient(cfg.RerankURL, cfg.RerankAPIKey,
			rerank.WithModel(cfg.RerankModel),
			rerank.WithLogger(logger),
		)))
	}
	hybrid := fusion.NewHybrid(lexicalClient, hybridOpts...)

	schedOpts := []scheduler.Option{
		scheduler.WithConfig(cfg.Pipeline.Scheduler),
		scheduler.WithLogger(logger),
	}
	if cfg.CooldownInterval > 0 {
		schedOpts = append(schedOpts, scheduler.WithCooldown(ratelimit.NewCooldown(cfg.CooldownInterval, cfg.CooldownBurst)))
	}
	if cfg.UtilityPersistence && a.DB != nil {
		schedOpts = append(schedOpts, scheduler.WithUtilityStore(repository.NewVariantUtilityRepository(a.DB)))
	}
	sched := scheduler.New(hybrid, schedOpts...)

	searchOpts := []service.SearchServiceOption{
		service.SearchWithPipeline(cfg.Pipeline),
		service.SearchWithLogger(logger),
	}
	if cfg.PlannerEnabled && a.Gemini != nil {
		searchOpts = append(searchOpts, service.SearchWithPlanner(
			gemini.NewPlanner(a.Gemini, cfg.PlannerModel, gemini.PlanWithLogger(logger))))
	}
	traceStore, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		logger.Warn("Trace storage unavailable, archiving disabled", zap.Error(err))
	} else if traceStore != nil {
		searchOpts = append(searchOpts, service.SearchWithArchive(storage.NewTraceArchive(traceStore)))
		logger.Info("Trace archive initialized", zap.String("type", string(cfg.Storage.Type)))
	}
	a.Search = service.NewSearchService(sched, searchOpts...)

	if a.DB != nil {
		a.Clients = repository.NewAPIClientRepository(a.DB)
		a.Counter = repository.NewRateCounterRepository(a.DB)
		a.Limiter = ratelimit.NewLimiter(a.Counter, logger)
	} else {
		a.Limiter = ratelimit.NewLimiter(nil, logger)
	}
	return a, nil
}

func (a *App) vectorStore(ctx context.Context, cfg *config.Config) fusion.VectorStore {
	switch cfg.VectorBackend {
	case config.VectorPGVector:
		if a.DB == nil {
			a.logger.Warn("pgvector backend selected without a database, semantic retrieval disabled")
			return nil
		}
		return repository.NewJudgmentChunkRepository(a.DB)
	case config.VectorWeaviate:
		store, err := vectorstore.NewWeaviateStoreFromURL(cfg.WeaviateURL,
			vectorstore.WithClassName(cfg.WeaviateClass),
			vectorstore.WithLogger(a.logger),
		)
		if err != nil {
			a.logger.Warn("Weaviate unavailable, semantic retrieval disabled", zap.Error(err))
			return nil
		}
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.EnsureSchema(sctx); err != nil {
			a.logger.Warn("Failed to ensure Weaviate schema", zap.Error(err))
		}
		return store
	}
	return nil
}

// PurgeRateCounters drops expired rate windows until ctx is done
func (a *App) PurgeRateCounters(ctx context.Context, every, keep time.Duration) {
	if a.Counter == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Counter.PurgeBefore(ctx, time.Now().Add(-keep))
			if err != nil {
				a.logger.Warn("Failed to purge rate counters", zap.Error(err))
				continue
			}
			a.logger.Debug("Purged rate counters", zap.Int64("rows", n))
		}
	}
}

// Close releases owned resources
func (a *App) Close() {
	if a.Gemini != nil {
		a.Gemini.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// InitPostgres opens a pool and enables pgvector
func InitPostgres(ctx context.Context, connString string, logger *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		logger.Warn("Failed to create pgvector extension, it may already exist or need superuser privileges", zap.Error(err))
	}
	logger.Info("Postgres connection established")
	return pool, nil
}
