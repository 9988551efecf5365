package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AuthStrategyProvider = "provider"
	AuthStrategyJWT      = "jwt"

	ProviderOpenAI  = "openai"
	ProviderMistral = "mistral"
	ProviderGoogle  = "google"

	StoreNone     = "none"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Port         string
	GinMode      string
	CORSOrigins  []string
	MaxBodySize  int64
	MaxAudioSize int64

	// Identity provider
	AuthStrategy      string
	SupabaseURL       string
	SupabaseKey       string
	SupabaseJWTSecret string
	AuthTimeout       time.Duration

	// Language model
	LLMProvider       string
	MistralAPIKey     string
	MistralBaseURL    string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	GeminiAPIKey      string
	ChatModel         string
	Temperature       float64
	MaxTokens         int
	CompletionTimeout time.Duration
	LLMRequestsPerMin int

	// Embeddings
	EmbeddingsProvider string
	EmbeddingModel     string
	EmbeddingTimeout   time.Duration

	// Speech passthrough (OpenAI only)
	STTModel      string
	TTSModel      string
	TTSVoice      string
	SpeechTimeout time.Duration

	// Retrieval store
	RAGStore            string
	DatabaseURL         string
	MongoURI            string
	DBName              string
	SQLitePath          string
	RAGCollection       string
	VectorDimensions    int
	RAGTopK             int
	DBMaxConns          int
	DBConnectTimeout    time.Duration
	RetrievalTimeout    time.Duration
	VectorSearchEnabled bool
	VectorIndexName     string
	MaxChunkSize        int
	ChunkOverlap        int

	// Redis (rate limiting, async ingestion)
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RateLimitReqs   int
	RateLimitWindow int

	// Observability
	OTelEndpoint     string
	TraceSampleRatio float64
	StoreProbeCron   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:         getEnv("PORT", "4000"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		MaxBodySize:  getEnvInt64("MAX_BODY_SIZE", 10<<20),  // 10MB
		MaxAudioSize: getEnvInt64("MAX_AUDIO_SIZE", 25<<20), // 25MB, Whisper upload cap
		AuthTimeout:  getEnvDuration("AUTH_TIMEOUT", 5*time.Second),

		SupabaseJWTSecret: getEnv("SUPABASE_JWT_SECRET", ""),

		MistralAPIKey:     getEnv("MISTRAL_API_KEY", ""),
		MistralBaseURL:    getEnv("MISTRAL_API_URL", "https://api.mistral.ai/v1"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_API_URL", "https://api.openai.com/v1"),
		ChatModel:         getEnv("CHAT_MODEL", ""),
		Temperature:       getEnvFloat64("LLM_TEMPERATURE", 0.3),
		MaxTokens:         getEnvInt("LLM_MAX_TOKENS", 1000),
		CompletionTimeout: getEnvDuration("COMPLETION_TIMEOUT", 30*time.Second),
		LLMRequestsPerMin: getEnvInt("LLM_REQUESTS_PER_MINUTE", 600),

		EmbeddingModel:   getEnv("EMBEDDING_MODEL", ""),
		EmbeddingTimeout: getEnvDuration("EMBEDDING_TIMEOUT", 10*time.Second),

		STTModel:      getEnv("STT_MODEL", "whisper-1"),
		TTSModel:      getEnv("TTS_MODEL", "tts-1"),
		TTSVoice:      getEnv("TTS_VOICE", "alloy"),
		SpeechTimeout: getEnvDuration("SPEECH_TIMEOUT", 60*time.Second),

		MongoURI:            getEnv("MONGO_URI", ""),
		DBName:              getEnv("DB_NAME", "humana"),
		SQLitePath:          getEnv("RAG_SQLITE_PATH", ""),
		RAGCollection:       getEnv("RAG_COLLECTION", "legal_documents"),
		RAGTopK:             getEnvInt("RAG_TOP_K", 3),
		DBMaxConns:          getEnvInt("DB_MAX_CONNS", 5),
		DBConnectTimeout:    getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		RetrievalTimeout:    getEnvDuration("RETRIEVAL_TIMEOUT", 5*time.Second),
		VectorSearchEnabled: getEnvBool("MONGODB_VECTOR_ENABLED", false),
		VectorIndexName:     getEnv("MONGODB_VECTOR_INDEX", "legal_documents_vector"),
		MaxChunkSize:        getEnvInt("MAX_CHUNK_SIZE", 2000),
		ChunkOverlap:        getEnvInt("CHUNK_OVERLAP", 200),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTelEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceSampleRatio: getEnvFloat64("OTEL_TRACE_SAMPLE_RATIO", 0.1),
		StoreProbeCron:   getEnv("STORE_PROBE_CRON", "*/1 * * * *"),
	}

	origins, _ := firstEnv("WEB_ORIGIN", "CORS_ORIGINS")
	if origins == "" {
		origins = "*"
	}
	cfg.CORSOrigins = splitList(origins)

	cfg.GeminiAPIKey, _ = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	cfg.DatabaseURL, _ = firstEnv("DATABASE_URL", "POSTGRES_URL")

	if err := cfg.resolveAuth(); err != nil {
		return nil, err
	}
	if err := cfg.resolveProviders(); err != nil {
		return nil, err
	}
	if err := cfg.resolveStore(); err != nil {
		return nil, err
	}

	if cfg.RAGTopK <= 0 {
		return nil, fmt.Errorf("RAG_TOP_K must be positive, got %d", cfg.RAGTopK)
	}
	if cfg.DBMaxConns <= 0 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be positive, got %d", cfg.DBMaxConns)
	}

	return cfg, nil
}

// resolveAuth picks the credential verification strategy. Delegating to the
// identity provider is preferred because it also catches revoked accounts.
func (c *Config) resolveAuth() error {
	c.SupabaseURL, _ = firstEnv("SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL")
	c.SupabaseKey, _ = firstEnv("SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_ANON_KEY")
	c.SupabaseURL = strings.TrimRight(c.SupabaseURL, "/")

	c.AuthStrategy = strings.ToLower(getEnv("AUTH_STRATEGY", ""))
	switch c.AuthStrategy {
	case AuthStrategyProvider:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("AUTH_STRATEGY=provider requires SUPABASE_URL (or NEXT_PUBLIC_SUPABASE_URL) and SUPABASE_SERVICE_ROLE_KEY (or SUPABASE_ANON_KEY)")
		}
	case AuthStrategyJWT:
		if c.SupabaseJWTSecret == "" {
			return fmt.Errorf("AUTH_STRATEGY=jwt requires SUPABASE_JWT_SECRET")
		}
	case "":
		switch {
		case c.SupabaseURL != "" && c.SupabaseKey != "":
			c.AuthStrategy = AuthStrategyProvider
		case c.SupabaseJWTSecret != "":
			c.AuthStrategy = AuthStrategyJWT
		default:
			return fmt.Errorf("identity provider is not configured: checked SUPABASE_URL, NEXT_PUBLIC_SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY, SUPABASE_ANON_KEY, SUPABASE_JWT_SECRET")
		}
	default:
		return fmt.Errorf("unknown AUTH_STRATEGY %q (want provider or jwt)", c.AuthStrategy)
	}
	return nil
}

// resolveProviders chooses the completion and embedding backends. A missing
// API key is not an error here: dependent endpoints answer 503 instead.
func (c *Config) resolveProviders() error {
	c.LLMProvider = strings.ToLower(getEnv("LLM_PROVIDER", ""))
	if c.LLMProvider == "" {
		switch {
		case c.OpenAIAPIKey != "":
			c.LLMProvider = ProviderOpenAI
		case c.MistralAPIKey != "":
			c.LLMProvider = ProviderMistral
		case c.GeminiAPIKey != "":
			c.LLMProvider = ProviderGoogle
		default:
			c.LLMProvider = ProviderOpenAI
		}
	}
	if !validProvider(c.LLMProvider) {
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.ChatModel == "" {
		c.ChatModel = defaultChatModel(c.LLMProvider)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("LLM_TEMPERATURE must be within [0,1], got %v", c.Temperature)
	}

	c.EmbeddingsProvider = strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", ""))
	if c.EmbeddingsProvider == "" {
		switch {
		case c.MistralAPIKey != "":
			c.EmbeddingsProvider = ProviderMistral
		case c.OpenAIAPIKey != "":
			c.EmbeddingsProvider = ProviderOpenAI
		case c.GeminiAPIKey != "":
			c.EmbeddingsProvider = ProviderGoogle
		default:
			c.EmbeddingsProvider = ProviderMistral
		}
	}
	if !validProvider(c.EmbeddingsProvider) {
		return fmt.Errorf("unknown EMBEDDINGS_PROVIDER %q", c.EmbeddingsProvider)
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = defaultEmbeddingModel(c.EmbeddingsProvider)
	}
	c.VectorDimensions = getEnvInt("VECTOR_DIM", defaultVectorDimensions(c.EmbeddingsProvider))
	if c.VectorDimensions <= 0 {
		return fmt.Errorf("VECTOR_DIM must be positive, got %d", c.VectorDimensions)
	}
	return nil
}

func (c *Config) resolveStore() error {
	c.RAGStore = strings.ToLower(getEnv("RAG_STORE", ""))
	if c.RAGStore == "" {
		switch {
		case c.DatabaseURL != "":
			c.RAGStore = StorePostgres
		case c.SQLitePath != "":
			c.RAGStore = StoreSQLite
		case c.MongoURI != "":
			c.RAGStore = StoreMongo
		default:
			c.RAGStore = StoreNone
		}
	}
	switch c.RAGStore {
	case StoreNone, StorePostgres, StoreMongo, StoreSQLite:
		return nil
	default:
		return fmt.Errorf("unknown RAG_STORE %q (want postgres, mongo, sqlite or none)", c.RAGStore)
	}
}

// APIKeyFor returns the credential for a language-model provider.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderMistral:
		return c.MistralAPIKey
	case ProviderGoogle:
		return c.GeminiAPIKey
	}
	return ""
}

// BaseURLFor returns the OpenAI-compatible endpoint for a provider.
func (c *Config) BaseURLFor(provider string) string {
	if provider == ProviderMistral {
		return c.MistralBaseURL
	}
	return c.OpenAIBaseURL
}

func validProvider(p string) bool {
	return p == ProviderOpenAI || p == ProviderMistral || p == ProviderGoogle
}

func defaultChatModel(provider string) string {
	switch provider {
	case ProviderMistral:
		return "mistral-small-latest"
	case ProviderGoogle:
		return "gemini-2.0-flash"
	default:
		return "gpt-4o-mini"
	}
}

func defaultEmbeddingModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "text-embedding-3-small"
	case ProviderGoogle:
		return "text-embedding-004"
	default:
		return "mistral-embed"
	}
}

// The embedding model fixes the store schema; these are the native output sizes.
func defaultVectorDimensions(provider string) int {
	switch provider {
	case ProviderOpenAI:
		return 1536
	case ProviderGoogle:
		return 768
	default:
		return 1024
	}
}
