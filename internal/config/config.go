package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

// Summarizer provider discriminants. Resolved once per run.
const (
	ProviderStub   = "stub"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"pulsewire"`
	DBPass string `envconfig:"DB_PASS" default:"pulsewire"`
	DBName string `envconfig:"DB_NAME" default:"pulsewire"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"redis:6379"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	AdminToken    string `envconfig:"API_ADMIN_TOKEN" default:"change-me"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	FeedUserAgent           string `envconfig:"FEED_USER_AGENT" default:"pulsewire-feeds/0.1"`
	RedditUserAgent         string `envconfig:"REDDIT_USER_AGENT" default:"pulsewire-bot/0.1"`
	IngestionTimeoutSeconds int    `envconfig:"INGESTION_TIMEOUT_SECONDS" default:"15"`
	IngestionDefaultLimit   int    `envconfig:"INGESTION_DEFAULT_LIMIT" default:"25"`

	ClusterSimilarityThreshold float64 `envconfig:"CLUSTER_SIMILARITY_THRESHOLD" default:"0.28"`
	ClusterWindowHours         int     `envconfig:"CLUSTER_WINDOW_HOURS" default:"72"`
	ClusterCandidateLimit      int     `envconfig:"CLUSTER_CANDIDATE_LIMIT" default:"100"`

	SummarizerProvider       string `envconfig:"SUMMARIZER_PROVIDER" default:"stub"`
	SummarizerTimeoutSeconds int    `envconfig:"SUMMARIZER_TIMEOUT_SECONDS" default:"30"`
	OpenAIAPIKey             string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel              string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	GeminiAPIKey             string `envconfig:"GEMINI_API_KEY"`
	GeminiModel              string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	FeedCacheTTLSeconds int `envconfig:"FEED_CACHE_TTL_SECONDS" default:"45"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may also be set in the shell; missing .env files are fine.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	switch c.SummarizerProvider {
	case ProviderStub, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: unknown SUMMARIZER_PROVIDER %q", ErrMissingRequired, c.SummarizerProvider)
	}
	if c.ClusterSimilarityThreshold < 0 || c.ClusterSimilarityThreshold > 1 {
		return fmt.Errorf("CLUSTER_SIMILARITY_THRESHOLD must be within [0,1], got %f", c.ClusterSimilarityThreshold)
	}
	return nil
}
