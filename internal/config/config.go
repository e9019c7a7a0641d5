// Package config loads runtime configuration from the environment (with an
// optional .env override), following the same env-first pattern the rest of
// the codebase uses.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// OpenAIConfig configures an OpenAI-compatible chat-completions backend.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	LogPayloads bool
	ExtraParams map[string]any
}

// AnthropicConfig configures an Anthropic Messages API backend.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// GenAIConfig configures a Google Gemini (genai) backend.
type GenAIConfig struct {
	APIKey  string
	Model   string
	Project string
	Region  string
}

// LLMSlot is one of the two configuration slots the LLM client abstraction
// calls for: the main responder model and the cheaper/faster
// intent-classification model.
type LLMSlot struct {
	Provider    string // "openai" | "anthropic" | "genai"
	OpenAI      OpenAIConfig
	Anthropic   AnthropicConfig
	GenAI       GenAIConfig
	Temperature float64
	MaxTokens   int
}

// RetrievalConfig controls the hybrid knowledge retriever.
type RetrievalConfig struct {
	TopK                int
	UseHybridSearch     bool
	UseRerank           bool
	UseQueryRewrite     bool
	RerankTopK          int
	SimilarityThreshold float64
	QdrantDSN           string
	Collection          string
	Dimensions          int
}

// SessionConfig controls the session context store.
type SessionConfig struct {
	Backend         string // "memory" | "redis"
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	TTL             time.Duration
	MaxHistoryTurns int
	MaxSessions     int // in-memory backend: oldest half evicted once reached
}

// IntentConfig controls intent recognition.
type IntentConfig struct {
	HistorySize       int
	FallbackThreshold float64
	CacheMaxSize      int
	CacheTTL          time.Duration
}

// SummaryConfig controls conversation summarization.
type SummaryConfig struct {
	TriggerThreshold int
	ContextMaxTokens int
}

// KafkaConfig configures the async audit event producer.
type KafkaConfig struct {
	Brokers     string
	EventsTopic string
}

// ClickHouseConfig configures the audit event sink.
type ClickHouseConfig struct {
	DSN      string
	Database string
}

// S3SSEConfig configures server-side encryption for objects written to S3.
type S3SSEConfig struct {
	Mode     string // "", "sse-s3", "sse-kms"
	KMSKeyID string
}

// S3Config configures an S3-compatible object storage backend.
type S3Config struct {
	Endpoint              string
	Region                string
	Bucket                string
	Prefix                string
	AccessKey             string
	SecretKey             string
	UsePathStyle          bool
	TLSInsecureSkipVerify bool
	SSE                   S3SSEConfig
}

// ObjectStoreConfig configures attachment/knowledge-file storage.
type ObjectStoreConfig struct {
	Backend string // "memory" | "s3"
	S3      S3Config
}

// AttachmentsConfig configures text extraction from uploaded attachments.
type AttachmentsConfig struct {
	WhisperModelPath string
	MaxChars         int
}

// FacadeConfig configures the reference Postgres-backed external-data
// facade. An empty DSN means no facade is constructed at startup; callers
// fall back to a minimal in-memory stub so the service still runs.
type FacadeConfig struct {
	PostgresDSN string
}

// Config is the fully-resolved runtime configuration for the concierge
// service.
type Config struct {
	ListenAddr string
	LogLevel   string
	LogPath    string

	Main   LLMSlot
	Intent LLMSlot

	Retrieval   RetrievalConfig
	Session     SessionConfig
	Intents     IntentConfig
	Summary     SummaryConfig
	Kafka       KafkaConfig
	ClickHouse  ClickHouseConfig
	ObjectStore ObjectStoreConfig
	Attachments AttachmentsConfig
	Facade      FacadeConfig

	RequestTimeout time.Duration

	LogPayloads      bool
	LogTruncateBytes int
}

// Load reads configuration from the environment, applying .env overrides.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}
	cfg.ListenAddr = firstNonEmpty(getenv("LISTEN_ADDR"), ":8080")
	cfg.LogLevel = firstNonEmpty(getenv("LOG_LEVEL"), "info")
	cfg.LogPath = getenv("LOG_PATH")

	cfg.Main.Provider = firstNonEmpty(getenv("LLM_PROVIDER"), "openai")
	cfg.Main.OpenAI.APIKey = getenv("OPENAI_API_KEY")
	cfg.Main.OpenAI.Model = firstNonEmpty(getenv("OPENAI_MODEL"), "gpt-4o-mini")
	cfg.Main.OpenAI.BaseURL = getenv("OPENAI_BASE_URL")
	cfg.Main.Anthropic.APIKey = getenv("ANTHROPIC_API_KEY")
	cfg.Main.Anthropic.Model = firstNonEmpty(getenv("ANTHROPIC_MODEL"), "claude-3-5-sonnet-latest")
	cfg.Main.Anthropic.MaxTokens = intFromEnv("ANTHROPIC_MAX_TOKENS", 1024)
	cfg.Main.GenAI.APIKey = getenv("GOOGLE_LLM_API_KEY")
	cfg.Main.GenAI.Model = firstNonEmpty(getenv("GOOGLE_LLM_MODEL"), "gemini-2.0-flash")
	cfg.Main.Temperature = floatFromEnv("LLM_TEMPERATURE", 0.3)
	cfg.Main.MaxTokens = intFromEnv("LLM_MAX_TOKENS", 1024)

	cfg.Intent = cfg.Main
	if v := getenv("INTENT_LLM_PROVIDER"); v != "" {
		cfg.Intent.Provider = v
	}
	if v := getenv("INTENT_OPENAI_MODEL"); v != "" {
		cfg.Intent.OpenAI.Model = v
	}
	if v := getenv("INTENT_OPENAI_API_KEY"); v != "" {
		cfg.Intent.OpenAI.APIKey = v
	}
	if v := getenv("INTENT_OPENAI_BASE_URL"); v != "" {
		cfg.Intent.OpenAI.BaseURL = v
	}
	if v := getenv("INTENT_ANTHROPIC_MODEL"); v != "" {
		cfg.Intent.Anthropic.Model = v
	}
	if v := getenv("INTENT_GOOGLE_LLM_MODEL"); v != "" {
		cfg.Intent.GenAI.Model = v
	}

	cfg.Retrieval.TopK = intFromEnv("RETRIEVAL_TOP_K", 5)
	cfg.Retrieval.UseHybridSearch = boolFromEnv("RAG_USE_HYBRID_SEARCH", true)
	cfg.Retrieval.UseRerank = boolFromEnv("RAG_USE_RERANK", false)
	cfg.Retrieval.UseQueryRewrite = boolFromEnv("RAG_USE_QUERY_REWRITE", false)
	cfg.Retrieval.RerankTopK = intFromEnv("RAG_RERANK_TOP_K", cfg.Retrieval.TopK)
	cfg.Retrieval.SimilarityThreshold = floatFromEnv("RAG_SIMILARITY_THRESHOLD", 0.0)
	cfg.Retrieval.QdrantDSN = getenv("QDRANT_DSN")
	cfg.Retrieval.Collection = firstNonEmpty(getenv("QDRANT_COLLECTION"), "knowledge")
	cfg.Retrieval.Dimensions = intFromEnv("QDRANT_DIMENSIONS", 1536)

	cfg.Session.Backend = firstNonEmpty(getenv("SESSION_STORE_BACKEND"), "memory")
	cfg.Session.RedisAddr = firstNonEmpty(getenv("REDIS_ADDR"), "localhost:6379")
	cfg.Session.RedisPassword = getenv("REDIS_PASSWORD")
	cfg.Session.RedisDB = intFromEnv("REDIS_DB", 0)
	cfg.Session.TTL = durationFromEnv("SESSION_TTL", 24*time.Hour)
	cfg.Session.MaxHistoryTurns = intFromEnv("CONTEXT_MAX_HISTORY", 20)
	cfg.Session.MaxSessions = intFromEnv("MAX_CONCURRENT_SESSIONS", 500)

	cfg.Intents.HistorySize = intFromEnv("INTENT_HISTORY_SIZE", 5)
	cfg.Intents.FallbackThreshold = floatFromEnv("INTENT_FALLBACK_THRESHOLD", 0.5)
	cfg.Intents.CacheMaxSize = intFromEnv("INTENT_CACHE_MAX_SIZE", 1000)
	cfg.Intents.CacheTTL = durationFromEnv("INTENT_CACHE_TTL", 1*time.Hour)

	cfg.Summary.TriggerThreshold = intFromEnv("SUMMARY_TRIGGER_THRESHOLD", 10)
	cfg.Summary.ContextMaxTokens = intFromEnv("CONTEXT_MAX_TOKENS", 4000)

	cfg.Kafka.Brokers = firstNonEmpty(getenv("KAFKA_BROKERS"), getenv("KAFKA_BOOTSTRAP_SERVERS"))
	cfg.Kafka.EventsTopic = firstNonEmpty(getenv("KAFKA_EVENTS_TOPIC"), "concierge.events")

	cfg.ClickHouse.DSN = getenv("CLICKHOUSE_DSN")
	cfg.ClickHouse.Database = firstNonEmpty(getenv("CLICKHOUSE_DATABASE"), "concierge")

	cfg.ObjectStore.Backend = firstNonEmpty(getenv("OBJECTSTORE_BACKEND"), "memory")
	cfg.ObjectStore.S3.Bucket = getenv("OBJECTSTORE_S3_BUCKET")
	cfg.ObjectStore.S3.Region = getenv("OBJECTSTORE_S3_REGION")
	cfg.ObjectStore.S3.Prefix = getenv("OBJECTSTORE_S3_PREFIX")
	cfg.ObjectStore.S3.Endpoint = getenv("OBJECTSTORE_S3_ENDPOINT")
	cfg.ObjectStore.S3.AccessKey = getenv("OBJECTSTORE_S3_ACCESS_KEY")
	cfg.ObjectStore.S3.SecretKey = getenv("OBJECTSTORE_S3_SECRET_KEY")
	cfg.ObjectStore.S3.UsePathStyle = boolFromEnv("OBJECTSTORE_S3_USE_PATH_STYLE", false)

	cfg.Attachments.WhisperModelPath = getenv("WHISPER_MODEL_PATH")
	cfg.Attachments.MaxChars = intFromEnv("ATTACHMENT_MAX_CHARS", 20000)

	cfg.Facade.PostgresDSN = getenv("POSTGRES_DSN")

	cfg.RequestTimeout = durationFromEnv("REQUEST_TIMEOUT", 30*time.Second)

	cfg.LogPayloads = boolFromEnv("LLM_LOG_PAYLOADS", false)
	cfg.LogTruncateBytes = intFromEnv("LLM_LOG_TRUNCATE_BYTES", 2000)

	return cfg, nil
}

func getenv(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func intFromEnv(key string, def int) int {
	v := getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatFromEnv(key string, def float64) float64 {
	v := getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func boolFromEnv(key string, def bool) bool {
	v := getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durationFromEnv(key string, def time.Duration) time.Duration {
	v := getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
