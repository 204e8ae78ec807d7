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


// Package config loads the process configuration from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/docqa/ai"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

// ErrUnknownFormat is returned for config files that are neither YAML nor TOML.
var ErrUnknownFormat = errors.New("unknown config file format")

type Config struct {
	Storage    StorageConfig    `yaml:"storage" toml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding" toml:"embedding"`
	Generation GenerationConfig `yaml:"generation" toml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" toml:"retrieval"`
	Ingestion  IngestionConfig  `yaml:"ingestion" toml:"ingestion"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
}

type StorageConfig struct {
	// Driver is "postgres" or "badger".
	Driver string `yaml:"driver" toml:"driver"`
	// URL is the Postgres connection string.
	URL string `yaml:"url" toml:"url"`
	// Path is the badger data directory.
	Path     string `yaml:"path" toml:"path"`
	PoolSize int32  `yaml:"pool_size" toml:"pool_size"`
	// Migrate applies the schema on startup.
	Migrate bool `yaml:"migrate" toml:"migrate"`
}

type EmbeddingConfig struct {
	Provider       string   `yaml:"provider" toml:"provider"`
	URL            string   `yaml:"url" toml:"url"`
	Model          string   `yaml:"model" toml:"model"`
	APIKey         string   `yaml:"api_key" toml:"api_key"`
	Dimension      int      `yaml:"dimension" toml:"dimension"`
	BatchSize      int      `yaml:"batch_size" toml:"batch_size"`
	MaxAttempts    int      `yaml:"max_attempts" toml:"max_attempts"`
	RetryBaseDelay Duration `yaml:"retry_base_delay" toml:"retry_base_delay"`
	RateLimit      float64  `yaml:"rate_limit" toml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" toml:"rate_burst"`
	HTTPTimeout    Duration `yaml:"http_timeout" toml:"http_timeout"`
}

type GenerationConfig struct {
	URL               string   `yaml:"url" toml:"url"`
	Model             string   `yaml:"model" toml:"model"`
	APIKey            string   `yaml:"api_key" toml:"api_key"`
	CompletionTimeout Duration `yaml:"completion_timeout" toml:"completion_timeout"`
	HandshakeTimeout  Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
}

type RetrievalConfig struct {
	TopK          int      `yaml:"top_k" toml:"top_k"`
	MaxTopK       int      `yaml:"max_top_k" toml:"max_top_k"`
	Timeout       Duration `yaml:"timeout" toml:"timeout"`
	MinSimilarity float64  `yaml:"min_similarity" toml:"min_similarity"`
}

type IngestionConfig struct {
	PDFDir         string   `yaml:"pdf_dir" toml:"pdf_dir"`
	ChunkSize      int      `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap   int      `yaml:"chunk_overlap" toml:"chunk_overlap"`
	PersistTimeout Duration `yaml:"persist_timeout" toml:"persist_timeout"`
	Workers        int      `yaml:"workers" toml:"workers"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr" toml:"addr"`
	AllowedOrigins  []string `yaml:"allowed_origins" toml:"allowed_origins"`
	MaxUploadBytes  int64    `yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	DocumentsLimit  int      `yaml:"documents_limit" toml:"documents_limit"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads path, choosing the decoder by extension, then fills unset
// fields with defaults. An empty path yields Default(). Callers apply
// their overrides and then call Validate.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := Decode(data, formatOf(path), c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	c.ApplyDefaults()
	return c, nil
}

func formatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Decode parses data as format ("yaml", "yml" or "toml") into c.
func Decode(data []byte, format string, c *Config) error {
	switch format {
	case "yaml", "yml":
		return yaml.Unmarshal(data, c)
	case "toml":
		return toml.Unmarshal(data, c)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Encode renders c in format.
func Encode(c *Config, format string) ([]byte, error) {
	switch format {
	case "yaml", "yml":
		return yaml.Marshal(c)
	case "toml":
		return toml.Marshal(c)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// ApplyDefaults fills every zero-valued field.
func (c *Config) ApplyDefaults() {
	setString(&c.Storage.Driver, DriverPostgres)
	setString(&c.Storage.Path, "data")
	setInt32(&c.Storage.PoolSize, 10)

	aiDefaults := ai.DefaultConfig()
	setString(&c.Embedding.Provider, aiDefaults.EmbeddingProvider)
	setString(&c.Embedding.URL, aiDefaults.EmbeddingHost)
	setString(&c.Embedding.Model, aiDefaults.EmbeddingModel)
	setInt(&c.Embedding.Dimension, 768)
	setInt(&c.Embedding.BatchSize, 32)
	setInt(&c.Embedding.MaxAttempts, 5)
	setDuration(&c.Embedding.RetryBaseDelay, 500*time.Millisecond)
	setDuration(&c.Embedding.HTTPTimeout, aiDefaults.HTTPTimeout)

	setString(&c.Generation.URL, aiDefaults.GenerationHost)
	setString(&c.Generation.Model, aiDefaults.GenerationModel)
	setDuration(&c.Generation.CompletionTimeout, 20*time.Second)
	setDuration(&c.Generation.HandshakeTimeout, 30*time.Second)

	setInt(&c.Retrieval.TopK, 5)
	setInt(&c.Retrieval.MaxTopK, 50)
	setDuration(&c.Retrieval.Timeout, 10*time.Second)

	setString(&c.Ingestion.PDFDir, "pdfs")
	setInt(&c.Ingestion.ChunkSize, 1000)
	setInt(&c.Ingestion.ChunkOverlap, 200)
	setDuration(&c.Ingestion.PersistTimeout, 300*time.Second)
	setInt(&c.Ingestion.Workers, 4)

	setString(&c.Server.Addr, ":8000")
	if c.Server.AllowedOrigins == nil {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 64 << 20
	}
	setDuration(&c.Server.ShutdownTimeout, 10*time.Second)
	setInt(&c.Server.DocumentsLimit, 100)
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.URL == "" {
			errs = append(errs, errors.New("storage.url is required for the postgres driver"))
		}
	case DriverBadger:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not postgres or badger", c.Storage.Driver))
	}
	if c.Embedding.Dimension < 1 {
		errs = append(errs, errors.New("embedding.dimension must be positive"))
	}
	if c.Embedding.BatchSize < 1 {
		errs = append(errs, errors.New("embedding.batch_size must be positive"))
	}
	if c.Embedding.MaxAttempts < 1 {
		errs = append(errs, errors.New("embedding.max_attempts must be positive"))
	}
	if c.Retrieval.TopK > c.Retrieval.MaxTopK {
		errs = append(errs, fmt.Errorf("retrieval.top_k %d exceeds max_top_k %d", c.Retrieval.TopK, c.Retrieval.MaxTopK))
	}
	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		errs = append(errs, errors.New("ingestion.chunk_overlap must be smaller than chunk_size"))
	}
	if err := c.AI().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AI returns the service configuration for the AI provider.
// The generation API key falls back to the embedding one.
func (c *Config) AI() *ai.Config {
	apiKey := c.Generation.APIKey
	if apiKey == "" {
		apiKey = c.Embedding.APIKey
	}
	opts := []ai.ConfigOption{
		ai.WithEmbeddingProvider(c.Embedding.Provider),
		ai.WithEmbeddingHost(c.Embedding.URL),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithGenerationHost(c.Generation.URL),
		ai.WithGenerationModel(c.Generation.Model),
		ai.WithHTTPTimeout(c.Embedding.HTTPTimeout.Std()),
	}
	if apiKey != "" {
		opts = append(opts, ai.WithAPIKey(apiKey))
	}
	return ai.NewConfig(opts...)
}

func setString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}

func setInt32(field *int32, value int32) {
	if *field == 0 {
		*field = value
	}
}

func setDuration(field *Duration, value time.Duration) {
	if *field == 0 {
		*field = Duration(value)
	}
}
