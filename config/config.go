// Package config loads service settings from the environment and an
// optional YAML file of pipeline tuning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"casecite-backend/diversity"
	"casecite-backend/fallback"
	"casecite-backend/fusion"
	"casecite-backend/proposition"
	"casecite-backend/scheduler"
	"casecite-backend/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Vector backends
const (
	VectorNone     = "none"
	VectorPGVector = "pgvector"
	VectorWeaviate = "weaviate"
)

// Pipeline is the tunable search policy, overridable from YAML
type Pipeline struct {
	Scheduler       scheduler.Config   `yaml:"scheduler"`
	Fusion          fusion.Config      `yaml:"fusion"`
	Scoring         proposition.Config `yaml:"scoring"`
	Diversity       diversity.Config   `yaml:"diversity"`
	Fallback        fallback.Config    `yaml:"fallback"`
	MaxResults      int                `yaml:"max_results"`
	MinExactResults int                `yaml:"min_exact_results"`
}

// DefaultPipeline returns the default search policy
func DefaultPipeline() Pipeline {
	return Pipeline{
		Scheduler:       scheduler.DefaultConfig(),
		Fusion:          fusion.DefaultConfig(),
		Scoring:         proposition.DefaultConfig(),
		Diversity:       diversity.DefaultConfig(),
		Fallback:        fallback.DefaultConfig(),
		MaxResults:      10,
		MinExactResults: 3,
	}
}

// Config holds everything the server and tools need
type Config struct {
	Port        string
	LogLevel    string
	DatabaseURL string

	GeminiAPIKey   string
	EmbeddingModel string
	PlannerModel   string
	PlannerEnabled bool

	LexicalBaseURL  string
	LexicalAPIToken string
	LexicalMaxPages int

	RerankURL    string
	RerankAPIKey string
	RerankModel  string

	VectorBackend string
	WeaviateURL   string
	WeaviateClass string

	Storage storage.StorageConfig

	AuthEnabled        bool
	DefaultClientLimit int
	CooldownInterval   time.Duration
	CooldownBurst      int
	UtilityPersistence bool
	PipelineConfigFile string
	Pipeline           Pipeline
}

// Load reads .env (current directory, then the project root two levels up),
// environment variables and the optional pipeline YAML file.
// Callers run Validate once a logger exists.
func Load(logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			logger.Info("no .env file found, using environment variables")
		}
	}

	cfg := FromEnv()
	if cfg.PipelineConfigFile != "" {
		p, err := LoadPipeline(cfg.PipelineConfigFile)
		if err != nil {
			return nil, err
		}
		cfg.Pipeline = p
	}
	return cfg, nil
}

// FromEnv builds a config from environment variables alone
func FromEnv() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		EmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		PlannerModel:   getEnv("GEMINI_PLANNER_MODEL", "gemini-1.5-flash"),
		PlannerEnabled: getBool("PLANNER_ENABLED", true),

		LexicalBaseURL:  getEnv("LEXICAL_BASE_URL", "https://api.indiankanoon.org"),
		LexicalAPIToken: os.Getenv("LEXICAL_API_TOKEN"),
		LexicalMaxPages: getInt("LEXICAL_MAX_PAGES", 2),

		RerankURL:    os.Getenv("RERANK_URL"),
		RerankAPIKey: os.Getenv("RERANK_API_KEY"),
		RerankModel:  os.Getenv("RERANK_MODEL"),

		VectorBackend: strings.ToLower(getEnv("VECTOR_BACKEND", VectorPGVector)),
		WeaviateURL:   os.Getenv("WEAVIATE_URL"),
		WeaviateClass: getEnv("WEAVIATE_CLASS", "JudgmentChunk"),

		Storage: storage.StorageConfig{
			Type:         storage.StorageType(strings.ToLower(getEnv("STORAGE_TYPE", "local"))),
			LocalPath:    getEnv("STORAGE_LOCAL_PATH", "./storage/traces"),
			S3Bucket:     os.Getenv("AWS_S3_BUCKET"),
			S3Region:     getEnv("AWS_REGION", "us-east-1"),
			S3Prefix:     getEnv("AWS_S3_PREFIX", "traces"),
			AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},

		AuthEnabled:        getBool("AUTH_ENABLED", false),
		DefaultClientLimit: getInt("DEFAULT_CLIENT_RATE_LIMIT", 30),
		CooldownInterval:   getDuration("LEXICAL_COOLDOWN", 0),
		CooldownBurst:      getInt("LEXICAL_COOLDOWN_BURST", 3),
		UtilityPersistence: getBool("UTILITY_PERSISTENCE", false),
		PipelineConfigFile: os.Getenv("PIPELINE_CONFIG_FILE"),
		Pipeline:           DefaultPipeline(),
	}
}

// LoadPipeline overlays a YAML file on the default pipeline.
// Keys missing from the file keep their defaults.
func LoadPipeline(path string) (Pipeline, error) {
	p := DefaultPipeline()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	return p, nil
}

// Validate repairs unusable values and returns what it changed.
// Missing optional services only disable the capability.
func (c *Config) Validate() []string {
	var warnings []string
	warnings = append(warnings, c.Pipeline.Scheduler.Validate()...)

	def := DefaultPipeline()
	p := &c.Pipeline
	if p.MaxResults <= 0 {
		p.MaxResults = def.MaxResults
		warnings = append(warnings, "pipeline: non-positive max_results replaced with default")
	}
	if p.MinExactResults < 0 {
		p.MinExactResults = 0
		warnings = append(warnings, "pipeline: negative min_exact_results set to 0")
	}
	if p.Fusion.K <= 0 {
		p.Fusion.K = def.Fusion.K
		warnings = append(warnings, "fusion: non-positive k replaced with default")
	}
	if p.Fusion.LexicalWeight < 0 || p.Fusion.SemanticWeight < 0 {
		p.Fusion.LexicalWeight, p.Fusion.SemanticWeight = def.Fusion.LexicalWeight, def.Fusion.SemanticWeight
		warnings = append(warnings, "fusion: negative weights replaced with defaults")
	}
	if p.Fusion.DominanceCap <= 0 || p.Fusion.DominanceCap > 1 {
		p.Fusion.DominanceCap = def.Fusion.DominanceCap
		warnings = append(warnings, "fusion: dominance_cap outside (0,1] replaced with default")
	}
	if p.Fusion.Limit <= 0 {
		p.Fusion.Limit = def.Fusion.Limit
	}
	if p.Diversity.TitleSnippetCap < 0 || p.Diversity.CourtDayCap < 0 {
		p.Diversity.TitleSnippetCap, p.Diversity.CourtDayCap = def.Diversity.TitleSnippetCap, def.Diversity.CourtDayCap
		warnings = append(warnings, "diversity: negative caps replaced with defaults")
	}
	if p.Fallback.SearchBaseURL == "" {
		p.Fallback.SearchBaseURL = fallback.DefaultSearchBaseURL
	}

	switch c.VectorBackend {
	case VectorNone, VectorPGVector, VectorWeaviate:
	default:
		warnings = append(warnings, "vector: unknown backend "+c.VectorBackend+", semantic retrieval disabled")
		c.VectorBackend = VectorNone
	}
	if c.VectorBackend == VectorWeaviate && c.WeaviateURL == "" {
		warnings = append(warnings, "vector: WEAVIATE_URL not set, semantic retrieval disabled")
		c.VectorBackend = VectorNone
	}
	if c.VectorBackend != VectorNone && c.GeminiAPIKey == "" {
		warnings = append(warnings, "vector: GEMINI_API_KEY not set, semantic retrieval disabled")
		c.VectorBackend = VectorNone
	}
	if c.PlannerEnabled && c.GeminiAPIKey == "" {
		warnings = append(warnings, "planner: GEMINI_API_KEY not set, planner disabled")
		c.PlannerEnabled = false
	}
	if c.Storage.Type == storage.StorageTypeS3 && c.Storage.S3Bucket == "" {
		warnings = append(warnings, "storage: AWS_S3_BUCKET not set, trace archive disabled")
		c.Storage.Type = storage.StorageTypeNone
	}
	if c.CooldownBurst < 1 {
		c.CooldownBurst = 1
	}
	return warnings
}

// NewLogger builds a production zap logger at the configured level
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
