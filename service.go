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


// Package docqa answers questions about a collection of PDF documents.
//
// Service wires the storage backend, the AI services and the pipeline
// components together and owns their lifecycle.
package docqa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/openai"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/embedding"
	"github.com/poiesic/docqa/generation"
	"github.com/poiesic/docqa/history"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/retrieval"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/poiesic/docqa/storage/postgres"
	"github.com/poiesic/docqa/vectorstore"
)

type Service struct {
	config     *config.Config
	store      storage.Store
	provider   ai.AIProvider
	embedder   *embedding.Client
	writer     *vectorstore.Writer
	retriever  *retrieval.Retriever
	history    *history.Store
	generator  *generation.Client
	supervisor *ingestion.Supervisor
	pipeline   *ingestion.Pipeline
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*options)

type options struct {
	store    storage.Store
	provider ai.AIProvider
	loader   ingestion.Loader
	monitor  generation.Monitor
	logger   *slog.Logger
}

// WithStore uses store instead of opening one from the configuration.
// The Service takes ownership and closes it.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithProvider uses provider instead of building the OpenAI-compatible one.
// The Service takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithLoader replaces the PDF loader.
func WithLoader(loader ingestion.Loader) Option {
	return func(o *options) {
		o.loader = loader
	}
}

// WithMonitor observes generation state transitions.
func WithMonitor(monitor generation.Monitor) Option {
	return func(o *options) {
		o.monitor = monitor
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// OpenStore opens the backend selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StorageConfig, dimension int) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		opts := postgres.Options{PoolSize: cfg.PoolSize}
		if cfg.Migrate {
			opts.MigrateDimension = dimension
		}
		store, err := postgres.Open(ctx, cfg.URL, opts)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverBadger:
		return badger.Open(cfg.Path)
	}
	return nil, fmt.Errorf("%w: %q", storage.ErrUnknownDriver, cfg.Driver)
}

// Open builds every component from cfg.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	s := &Service{config: cfg, logger: o.logger}
	if err := s.build(ctx, o); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build(ctx context.Context, o *options) error {
	cfg := s.config
	var err error

	s.store = o.store
	if s.store == nil {
		if s.store, err = OpenStore(ctx, cfg.Storage, cfg.Embedding.Dimension); err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
	}

	s.provider = o.provider
	if s.provider == nil {
		if s.provider, err = openai.NewProvider(cfg.AI()); err != nil {
			return fmt.Errorf("create AI provider: %w", err)
		}
	}

	s.embedder, err = embedding.NewClient(s.provider.Embedder(),
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithRetry(cfg.Embedding.MaxAttempts, cfg.Embedding.RetryBaseDelay.Std()),
		embedding.WithRateLimit(cfg.Embedding.RateLimit, cfg.Embedding.RateBurst),
		embedding.WithLogger(s.logger.With("component", "embedding")),
	)
	if err != nil {
		return err
	}

	if s.writer, err = vectorstore.NewWriter(s.store.Documents(), s.embedder,
		vectorstore.WithDimension(cfg.Embedding.Dimension),
		vectorstore.WithLogger(s.logger.With("component", "vectorstore")),
	); err != nil {
		return err
	}

	if s.retriever, err = retrieval.NewRetriever(s.store.Documents(), s.embedder,
		retrieval.WithTopK(cfg.Retrieval.TopK),
		retrieval.WithMaxTopK(cfg.Retrieval.MaxTopK),
		retrieval.WithTimeout(cfg.Retrieval.Timeout.Std()),
		retrieval.WithMinSimilarity(cfg.Retrieval.MinSimilarity),
		retrieval.WithLogger(s.logger.With("component", "retrieval")),
	); err != nil {
		return err
	}

	if s.history, err = history.NewStore(s.store.History(),
		history.WithLogger(s.logger.With("component", "history")),
	); err != nil {
		return err
	}

	if s.generator, err = generation.NewClient(s.retriever, s.provider.ChatModel(), s.history,
		generation.WithCompletionTimeout(cfg.Generation.CompletionTimeout.Std()),
		generation.WithHandshakeTimeout(cfg.Generation.HandshakeTimeout.Std()),
		generation.WithMonitor(o.monitor),
		generation.WithLogger(s.logger.With("component", "generation")),
	); err != nil {
		return err
	}

	if s.supervisor, err = ingestion.NewSupervisor(cfg.Ingestion.Workers, s.logger); err != nil {
		return err
	}

	loader := o.loader
	if loader == nil {
		if loader, err = ingestion.NewPDFLoader(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap); err != nil {
			return err
		}
	}
	s.pipeline, err = ingestion.NewPipeline(loader, s.writer, s.store.Ingestions(), s.supervisor,
		ingestion.WithPersistTimeout(cfg.Ingestion.PersistTimeout.Std()),
		ingestion.WithLogger(s.logger.With("component", "ingestion")),
	)
	return err
}

// Close waits for background ingestion work, then releases the AI
// provider and the store.
func (s *Service) Close() error {
	var errs []error
	if s.supervisor != nil {
		if err := s.supervisor.Release(s.config.Server.ShutdownTimeout.Std()); err != nil {
			s.logger.Error("background tasks still running at shutdown", "err", err)
			errs = append(errs, err)
		}
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("error closing storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) Config() *config.Config {
	return s.config
}

// Ping checks the storage backend.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Answer returns a whole answer with its sources. No history is written.
func (s *Service) Answer(ctx context.Context, question string) (*core.Answer, error) {
	return s.generator.Answer(ctx, question)
}

// Stream opens a streamed answer within a conversation. An empty
// conversationID starts a new conversation; its id is available from the
// returned stream. The conversation's history is read before streaming.
func (s *Service) Stream(ctx context.Context, conversationID, question string) (*generation.Stream, error) {
	var turns []*core.ConversationTurn
	if conversationID == "" {
		conversationID = history.NewConversationID()
	} else {
		var err error
		if turns, err = s.history.Get(ctx, conversationID); err != nil {
			return nil, err
		}
	}
	return s.generator.Stream(ctx, conversationID, question, turns)
}

// History returns a conversation's turns, oldest first.
func (s *Service) History(ctx context.Context, conversationID string) ([]*core.ConversationTurn, error) {
	return s.history.Get(ctx, conversationID)
}

// Documents lists stored chunks in insertion order.
func (s *Service) Documents(ctx context.Context, skip, limit int) ([]*core.DocumentRecord, error) {
	if err := core.ValidatePagination(skip, limit, s.config.Server.DocumentsLimit); err != nil {
		return nil, err
	}
	return s.store.Documents().ListDocuments(ctx, skip, limit)
}

// Ingestions lists the most recent ingestion records.
func (s *Service) Ingestions(ctx context.Context, limit int) ([]*core.IngestionRecord, error) {
	return s.store.Ingestions().ListIngestions(ctx, limit)
}

// IngestFile ingests a PDF already on disk and returns its chunk count.
func (s *Service) IngestFile(ctx context.Context, path string) (int, error) {
	return s.pipeline.IngestFile(ctx, path)
}

// IngestFiles ingests several files, writing progress to w.
func (s *Service) IngestFiles(ctx context.Context, paths []string, w io.Writer) (int, error) {
	return s.pipeline.IngestFiles(ctx, paths, w)
}

// IngestUpload saves r under the PDF directory as filename and ingests it.
func (s *Service) IngestUpload(ctx context.Context, filename string, r io.Reader) (int, error) {
	name := filepath.Base(filename)
	if !ingestion.IsPDF(name) {
		return 0, fmt.Errorf("%w: %s", ingestion.ErrNotPDF, name)
	}
	dir := s.config.Ingestion.PDFDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return 0, fmt.Errorf("save %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	count, err := s.pipeline.IngestFile(ctx, path)
	if err != nil {
		return 0, err
	}
	s.logger.Info("finished ingestion", "file", name, "chunks", count)
	return count, nil
}

// Watch ingests PDFs dropped into the PDF directory until ctx is done.
func (s *Service) Watch(ctx context.Context) error {
	dir := s.config.Ingestion.PDFDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return ingestion.NewWatcher(dir, s.pipeline, s.logger).Run(ctx)
}
