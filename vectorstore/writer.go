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


// Package vectorstore turns chunks into persisted, embedded document rows.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

var (
	// ErrRepositoryRequired is returned when no document repository is provided.
	ErrRepositoryRequired = errors.New("document repository required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")
)

// Writer embeds chunks and stores them. A write is all or nothing.
type Writer struct {
	repository storage.DocumentRepository
	embedder   ai.Embedder
	dimension  int
	logger     *slog.Logger
}

type Option func(*Writer)

// WithDimension enforces the vector width. Zero disables the check.
func WithDimension(dim int) Option {
	return func(w *Writer) {
		w.dimension = dim
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWriter creates a Writer. embedder is normally an *embedding.Client so
// that batching and retries apply.
func NewWriter(repository storage.DocumentRepository, embedder ai.Embedder, opts ...Option) (*Writer, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	w := &Writer{
		repository: repository,
		embedder:   embedder,
		logger:     slog.Default().With("component", "vectorstore"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// AddDocuments embeds every chunk with a single embedder call and writes
// the resulting rows in one transaction. It returns the number of rows written.
func (w *Writer) AddDocuments(ctx context.Context, chunks []core.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := w.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("%w: %d chunks, %d vectors", core.ErrEmbeddingCountMismatch, len(texts), len(vectors))
	}

	records := make([]*core.DocumentRecord, len(chunks))
	for i, c := range chunks {
		if err := core.ValidateVector(vectors[i], w.dimension); err != nil {
			return 0, fmt.Errorf("chunk %d: %w", i, err)
		}
		records[i] = &core.DocumentRecord{
			ID:        uuid.New(),
			Content:   c.Content,
			Embedding: vectors[i],
			Metadata:  c.Metadata,
		}
	}

	if err := w.repository.AddDocuments(ctx, records...); err != nil {
		return 0, fmt.Errorf("store documents: %w", err)
	}
	w.logger.Debug("documents stored", "count", len(records))
	return len(records), nil
}

// AddPayloads adapts raw payloads with AdaptPayload, then behaves as AddDocuments.
// An unsupported payload fails the call before anything is embedded.
func (w *Writer) AddPayloads(ctx context.Context, payloads []any) (int, error) {
	chunks, err := AdaptPayloads(payloads)
	if err != nil {
		return 0, err
	}
	return w.AddDocuments(ctx, chunks)
}
