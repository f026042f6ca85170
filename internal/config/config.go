package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Embedding and chat go through an OpenAI-compatible endpoint.
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"voyage-3-large"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1024"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	CohereAPIKey string `envconfig:"COHERE_API_KEY"`
	RerankModel  string `envconfig:"RERANK_MODEL" default:"rerank-english-v3.0"`

	// Retrieval tunables. The defaults come from empirical tuning of
	// the live assistant, not from first principles.
	MatchCount          int           `envconfig:"MATCH_COUNT" default:"30"`
	TitleMatchCount     int           `envconfig:"TITLE_MATCH_COUNT" default:"10"`
	SimilarityThreshold float64       `envconfig:"SIMILARITY_THRESHOLD" default:"0.40"`
	KeywordBoost        float64       `envconfig:"KEYWORD_BOOST" default:"1.5"`
	RerankTopN          int           `envconfig:"RERANK_TOP_N" default:"10"`
	ContextSize         int           `envconfig:"CONTEXT_SIZE" default:"10"`
	FallbackContextSize int           `envconfig:"FALLBACK_CONTEXT_SIZE" default:"12"`
	MaxParallelWorkers  int           `envconfig:"MAX_PARALLEL_WORKERS" default:"4"`
	WorkerTimeout       time.Duration `envconfig:"WORKER_TIMEOUT" default:"15s"`
	OverallTimeout      time.Duration `envconfig:"OVERALL_TIMEOUT" default:"45s"`

	SentryDSN              string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment      string  `envconfig:"SENTRY_ENVIRONMENT"`
	SentryTracesSampleRate float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"1.0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("OJAS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasCohere() bool {
	return c.CohereAPIKey != ""
}
