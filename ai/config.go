// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"strings"
	"time"
)

const (
	// EmbeddingProviderTEI posts {"inputs": [...]} to a text-embeddings-inference style endpoint.
	EmbeddingProviderTEI = "tei"
	// EmbeddingProviderOpenAI uses the OpenAI-compatible /embeddings API.
	EmbeddingProviderOpenAI = "openai"
)

type Config struct {
	// EmbeddingProvider selects the embedding wire protocol: "tei" or "openai".
	EmbeddingProvider string

	// EmbeddingHost is the base URL for the embedding service.
	// Example: "http://localhost:8080" for TEI, "http://localhost:11434/v1" for OpenAI-compatible
	EmbeddingHost string

	// EmbeddingModel is the model identifier sent to OpenAI-compatible embedding APIs.
	// TEI serves a single model and ignores it.
	EmbeddingModel string

	// GenerationHost is the base URL for the OpenAI-compatible chat completion API.
	GenerationHost string

	// GenerationModel is the chat model identifier.
	// Example: "gpt-3.5-turbo", "llama3.1:8b"
	GenerationModel string

	// APIKey is sent as a bearer token. Local servers usually accept anything.
	APIKey string

	// HTTPTimeout bounds a single HTTP request to the embedding service.
	// Default: 60s
	HTTPTimeout time.Duration
}

type ConfigOption func(*Config)

func WithEmbeddingProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingProvider = provider
	}
}

func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

func WithGenerationHost(host string) ConfigOption {
	return func(c *Config) {
		c.GenerationHost = host
	}
}

func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

func WithGenerationModel(model string) ConfigOption {
	return func(c *Config) {
		c.GenerationModel = model
	}
}

func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

func WithHTTPTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.HTTPTimeout = d
	}
}

func DefaultConfig() *Config {
	return &Config{
		EmbeddingProvider: EmbeddingProviderTEI,
		EmbeddingHost:     "http://localhost:8080",
		EmbeddingModel:    "nomic-embed-text",
		GenerationHost:    "https://api.openai.com/v1",
		GenerationModel:   "gpt-3.5-turbo",
		APIKey:            "none",
		HTTPTimeout:       60 * time.Second,
	}
}

func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *Config) Normalize() {
	c.EmbeddingProvider = strings.ToLower(strings.TrimSpace(c.EmbeddingProvider))
	if c.EmbeddingProvider == EmbeddingProviderOpenAI {
		c.EmbeddingHost = withV1(c.EmbeddingHost)
	} else {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
	}
	c.GenerationHost = withV1(c.GenerationHost)
}

// withV1 makes sure an OpenAI-compatible base URL ends with /v1.
func withV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

func (c *Config) Validate() error {
	c.Normalize()

	switch c.EmbeddingProvider {
	case EmbeddingProviderTEI, EmbeddingProviderOpenAI:
	default:
		return errors.New("ai config: EmbeddingProvider must be \"tei\" or \"openai\"")
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingProvider == EmbeddingProviderOpenAI && c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required for the openai provider")
	}
	if c.GenerationHost == "" {
		return errors.New("ai config: GenerationHost is required")
	}
	if c.GenerationModel == "" {
		return errors.New("ai config: GenerationModel is required")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("ai config: HTTPTimeout must be positive")
	}
	return nil
}
