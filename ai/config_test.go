package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, EmbeddingProviderTEI, cfg.EmbeddingProvider)
	assert.Equal(t, "http://localhost:8080", cfg.EmbeddingHost)
	assert.Equal(t, "https://api.openai.com/v1", cfg.GenerationHost)
	assert.Equal(t, "gpt-3.5-turbo", cfg.GenerationModel)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080"),
			WithGenerationHost("http://llm:11434/v1"),
		)

		assert.Equal(t, "http://embed:8080", cfg.EmbeddingHost)
		assert.Equal(t, "http://llm:11434/v1", cfg.GenerationHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingProvider(EmbeddingProviderOpenAI),
			WithEmbeddingModel("text-embedding-3-small"),
			WithGenerationModel("gpt-4o-mini"),
			WithAPIKey("sk-test"),
			WithHTTPTimeout(5*time.Second),
		)

		assert.Equal(t, EmbeddingProviderOpenAI, cfg.EmbeddingProvider)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.GenerationModel)
		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name           string
		provider       string
		embeddingHost  string
		generationHost string
		wantEmbedding  string
		wantGeneration string
	}{
		{
			name:           "tei host keeps its path",
			provider:       EmbeddingProviderTEI,
			embeddingHost:  "http://tei:8080/",
			generationHost: "http://llm:11434",
			wantEmbedding:  "http://tei:8080",
			wantGeneration: "http://llm:11434/v1",
		},
		{
			name:           "openai embedding host gets v1",
			provider:       EmbeddingProviderOpenAI,
			embeddingHost:  "http://ollama:11434/",
			generationHost: "http://llm:11434/v1",
			wantEmbedding:  "http://ollama:11434/v1",
			wantGeneration: "http://llm:11434/v1",
		},
		{
			name:           "provider is case-insensitive",
			provider:       " OpenAI ",
			embeddingHost:  "http://ollama:11434/v1",
			generationHost: "",
			wantEmbedding:  "http://ollama:11434/v1",
			wantGeneration: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				EmbeddingProvider: tt.provider,
				EmbeddingHost:     tt.embeddingHost,
				GenerationHost:    tt.generationHost,
			}
			cfg.Normalize()

			assert.Equal(t, tt.wantEmbedding, cfg.EmbeddingHost)
			assert.Equal(t, tt.wantGeneration, cfg.GenerationHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.EmbeddingProvider = "cohere" },
			wantErr: "EmbeddingProvider",
		},
		{
			name:    "missing embedding host",
			mutate:  func(c *Config) { c.EmbeddingHost = "" },
			wantErr: "EmbeddingHost is required",
		},
		{
			name: "openai provider needs a model",
			mutate: func(c *Config) {
				c.EmbeddingProvider = EmbeddingProviderOpenAI
				c.EmbeddingModel = ""
			},
			wantErr: "EmbeddingModel is required",
		},
		{
			name:    "missing generation host",
			mutate:  func(c *Config) { c.GenerationHost = "" },
			wantErr: "GenerationHost is required",
		},
		{
			name:    "missing generation model",
			mutate:  func(c *Config) { c.GenerationModel = "" },
			wantErr: "GenerationModel is required",
		},
		{
			name:    "zero http timeout",
			mutate:  func(c *Config) { c.HTTPTimeout = 0 },
			wantErr: "HTTPTimeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("tei provider does not need a model", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingModel(""))
		assert.NoError(t, cfg.Validate())
	})
}
