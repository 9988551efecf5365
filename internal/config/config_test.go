package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configVars = []string{
	"AUTH_STRATEGY", "SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY",
	"SUPABASE_ANON_KEY", "SUPABASE_JWT_SECRET", "LLM_PROVIDER", "EMBEDDINGS_PROVIDER",
	"OPENAI_API_KEY", "MISTRAL_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "VECTOR_DIM",
	"RAG_STORE", "DATABASE_URL", "POSTGRES_URL", "MONGO_URI", "RAG_SQLITE_PATH",
	"WEB_ORIGIN", "CORS_ORIGINS", "CHAT_MODEL", "EMBEDDING_MODEL", "AUTH_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configVars {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_FailsWithoutIdentityProvider(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig()
	require.Error(t, err)
	for _, name := range []string{"SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY", "SUPABASE_JWT_SECRET"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestLoadConfig_PrefersProviderStrategy(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://example.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
	t.Setenv("SUPABASE_JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, AuthStrategyProvider, cfg.AuthStrategy)
	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
}

func TestLoadConfig_URLPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPABASE_URL", "https://primary.example")
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://secondary.example")
	t.Setenv("SUPABASE_ANON_KEY", "anon")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://primary.example", cfg.SupabaseURL)
	assert.Equal(t, "anon", cfg.SupabaseKey)
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPABASE_JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, AuthStrategyJWT, cfg.AuthStrategy)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, ProviderMistral, cfg.EmbeddingsProvider)
	assert.Equal(t, "mistral-embed", cfg.EmbeddingModel)
	assert.Equal(t, 1024, cfg.VectorDimensions)
	assert.Equal(t, StoreNone, cfg.RAGStore)
	assert.Equal(t, 3, cfg.RAGTopK)
	assert.Equal(t, 5, cfg.DBMaxConns)
	assert.Equal(t, 0.3, cfg.Temperature)
	assert.Equal(t, 1000, cfg.MaxTokens)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "", cfg.APIKeyFor(cfg.LLMProvider))
}

func TestLoadConfig_ProviderAndStoreAutoDetect(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPABASE_JWT_SECRET", "secret")
	t.Setenv("MISTRAL_API_KEY", "mk")
	t.Setenv("POSTGRES_URL", "postgres://localhost/humana")
	t.Setenv("AUTH_TIMEOUT", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ProviderMistral, cfg.LLMProvider)
	assert.Equal(t, "mistral-small-latest", cfg.ChatModel)
	assert.Equal(t, "mk", cfg.APIKeyFor(ProviderMistral))
	assert.Equal(t, "https://api.mistral.ai/v1", cfg.BaseURLFor(ProviderMistral))
	assert.Equal(t, StorePostgres, cfg.RAGStore)
	assert.Equal(t, "postgres://localhost/humana", cfg.DatabaseURL)
	assert.Equal(t, 7*time.Second, cfg.AuthTimeout)
}

func TestLoadConfig_RejectsUnknownValues(t *testing.T) {
	cases := map[string]string{
		"AUTH_STRATEGY": "basic",
		"LLM_PROVIDER":  "llama",
		"RAG_STORE":     "redis",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("SUPABASE_JWT_SECRET", "secret")
			t.Setenv(key, value)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), value)
		})
	}
}
