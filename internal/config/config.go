package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"mwanachuomind-docs"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	VisionModel         string `envconfig:"VISION_MODEL" default:"gpt-4o-mini"`

	// Chunking parameters for the ingestion pipeline.
	ChunkSize     int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap  int `envconfig:"CHUNK_OVERLAP" default:"200"`
	ChunkMinChars int `envconfig:"CHUNK_MIN_CHARS" default:"50"`

	// EmbedBatchSize bounds concurrent embedding calls per batch.
	EmbedBatchSize int `envconfig:"EMBED_BATCH_SIZE" default:"10"`
	// InsertBatchSize bounds chunk rows written per insert statement.
	InsertBatchSize int `envconfig:"INSERT_BATCH_SIZE" default:"50"`

	// Retrieval tuning. Scoped values apply when a query targets a single
	// document or note: fewer, more specific chunks warrant looser admission.
	SearchThreshold       float32 `envconfig:"SEARCH_THRESHOLD" default:"0.5"`
	SearchTopK            int     `envconfig:"SEARCH_TOP_K" default:"5"`
	ScopedSearchThreshold float32 `envconfig:"SCOPED_SEARCH_THRESHOLD" default:"0.3"`
	ScopedSearchTopK      int     `envconfig:"SCOPED_SEARCH_TOP_K" default:"10"`
	// SearchWidenFactor is the over-fetch multiplier used when course-wide
	// scope is filtered client-side.
	SearchWidenFactor int `envconfig:"SEARCH_WIDEN_FACTOR" default:"4"`

	WorkerPollSeconds int `envconfig:"WORKER_POLL_SECONDS" default:"15"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MIND", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("invalid chunking config: overlap (%d) must be smaller than chunk size (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return &cfg, nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
