package config

import "github.com/caarlos0/env/v10"

// Config centralizes service configuration, loaded once from environment
// variables via struct tags (teacher's caarlos0/env idiom).
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	// Relational store (C4)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Generator + embedding LLM (C1, C12)
	LLMAPIKey  string `env:"LLM_API_KEY,required"`
	LLMBaseURL string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel   string `env:"LLM_MODEL" envDefault:"gpt-5.1"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	// Vector store (C3)
	QdrantAddr       string `env:"QDRANT_ADDR" envDefault:"localhost:6334"`
	QdrantAPIKey     string `env:"QDRANT_API_KEY"`
	QdrantVectorSize int    `env:"QDRANT_VECTOR_SIZE" envDefault:"1536"`

	// Time-series store (C5)
	ClickHouseAddr     string `env:"CLICKHOUSE_ADDR" envDefault:"localhost:9000"`
	ClickHouseDatabase string `env:"CLICKHOUSE_DATABASE" envDefault:"default"`
	ClickHouseUser     string `env:"CLICKHOUSE_USER" envDefault:"default"`
	ClickHousePassword string `env:"CLICKHOUSE_PASSWORD"`

	// Conversation cache + distributed lock (C6, C12)
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// C6 backend selection and sizing. CacheMode selects "memory" (default)
	// or "redis"; an unreachable redis backend falls back to in-memory with
	// a logged warning rather than failing startup.
	CacheMode                       string `env:"CACHE_MODE" envDefault:"memory"`
	CacheHost                       string `env:"CACHE_HOST"`
	CachePort                       int    `env:"CACHE_PORT" envDefault:"6379"`
	ConversationCacheTimeoutMinutes int    `env:"CONVERSATION_CACHE_TIMEOUT_MINUTES" envDefault:"15"`
	ConversationCacheBootstrapLimit int    `env:"CONVERSATION_CACHE_BOOTSTRAP_LIMIT" envDefault:"20"`
	ConversationCacheMaxLocal       int    `env:"CONVERSATION_CACHE_MAX_LOCAL" envDefault:"50"`

	// Boundary/topic tracking (C7)
	SessionInactivityMinutes int `env:"SESSION_INACTIVITY_MINUTES" envDefault:"30"`
	SummarizationThreshold   int `env:"SUMMARIZATION_THRESHOLD" envDefault:"8"`

	// Role-attribution signing (C11)
	AttributionSecret string `env:"ATTRIBUTION_SECRET,required"`
	AttributionTTLSeconds int `env:"ATTRIBUTION_TTL_SECONDS" envDefault:"120"`

	// Persona descriptors (C9)
	PersonaDir string `env:"PERSONA_DIR" envDefault:"./personas"`

	// Pipeline behavior (C12, spec.md §5/§6)
	BranchTimeoutMillis   int  `env:"PIPELINE_BRANCH_TIMEOUT_MS" envDefault:"2500"`
	OverallTimeoutMillis  int  `env:"PIPELINE_OVERALL_TIMEOUT_MS" envDefault:"9000"`
	PromptTokenBudget     int  `env:"PROMPT_TOKEN_BUDGET" envDefault:"3500"`
	StrictImmersiveMode   bool `env:"STRICT_IMMERSIVE_MODE" envDefault:"true"`
	IdentityLevel         string `env:"IDENTITY_LEVEL" envDefault:"CONTEXTUALIZED"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
