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


package openai

import (
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/tei"
)

// Provider implements ai.AIProvider. Generation always goes through an
// OpenAI-compatible endpoint; embeddings use either the OpenAI-compatible
// API or a TEI endpoint depending on Config.EmbeddingProvider.
type Provider struct {
	config   *ai.Config
	embedder ai.Embedder
	chat     *ChatModel
	logger   *slog.Logger
}

// NewProvider creates a new AI provider.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		embedder ai.Embedder
		err      error
	)
	switch config.EmbeddingProvider {
	case ai.EmbeddingProviderOpenAI:
		embedder, err = newEmbedder(config)
	default:
		embedder, err = tei.NewEmbedder(config)
	}
	if err != nil {
		return nil, err
	}

	chat, err := newChatModel(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:   config,
		embedder: embedder,
		chat:     chat,
		logger:   slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the embedding transport.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// ChatModel returns the completion service.
func (p *Provider) ChatModel() ai.ChatModel {
	return p.chat
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return nil
}
