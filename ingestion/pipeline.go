package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// DefaultPersistTimeout bounds how long IngestFile waits for embeddings to
// be persisted before leaving the work to the background.
const DefaultPersistTimeout = 300 * time.Second

// DocumentWriter persists adapted payloads; vectorstore.Writer implements it.
type DocumentWriter interface {
	AddPayloads(ctx context.Context, payloads []any) (int, error)
}

// Pipeline ingests PDF files and records each ingestion.
type Pipeline struct {
	loader         Loader
	writer         DocumentWriter
	ingestions     storage.IngestionRepository
	supervisor     *Supervisor
	persistTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPersistTimeout sets how long IngestFile waits for persistence.
func WithPersistTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d <= 0 {
			return fmt.Errorf("persist timeout must be positive, got %s", d)
		}
		p.persistTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. The supervisor is shared,
// not owned: the caller releases it.
func NewPipeline(
	loader Loader,
	writer DocumentWriter,
	ingestions storage.IngestionRepository,
	supervisor *Supervisor,
	opts ...Option,
) (*Pipeline, error) {
	if loader == nil {
		return nil, ErrLoaderRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}
	if ingestions == nil {
		return nil, ErrRepositoryRequired
	}
	if supervisor == nil {
		return nil, ErrSupervisorRequired
	}

	p := &Pipeline{
		loader:         loader,
		writer:         writer,
		ingestions:     ingestions,
		supervisor:     supervisor,
		persistTimeout: DefaultPersistTimeout,
		logger:         slog.Default().With("component", "ingestion"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// IngestFile ingests one PDF and returns its chunk count.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	logger := p.logger.With("path", path)
	logger.Info("starting ingestion")

	checksum, err := fileChecksum(path)
	if err != nil {
		return 0, err
	}

	docs, err := p.loader.Load(ctx, path)
	if err != nil {
		return 0, err
	}
	logger.Info("split document", "chunks", len(docs))

	payloads := make([]any, len(docs))
	for i := range docs {
		payloads[i] = docs[i]
	}

	detached, err := p.supervisor.Run(ctx, "persist "+filepath.Base(path), p.persistTimeout,
		func(ctx context.Context) error {
			written, err := p.writer.AddPayloads(ctx, payloads)
			if err != nil {
				return err
			}
			logger.Info("persisted chunks", "written", written)
			return nil
		})
	// a detached write still lands, so it gets its record even when the
	// caller went away
	recordCtx := ctx
	switch {
	case detached:
		logger.Warn("persisting embeddings detached, allowing background completion",
			"timeout", p.persistTimeout, "reason", err)
		recordCtx = context.WithoutCancel(ctx)
	case err != nil:
		return 0, fmt.Errorf("persist chunks of %s: %w", path, err)
	}

	record := &core.IngestionRecord{
		Filename: filepath.Base(path),
		Metadata: core.IngestionMetadata{
			ChunkCount: len(docs),
			SourcePath: path,
			Checksum:   checksum,
		},
	}
	if err := p.ingestions.AddIngestion(recordCtx, record); err != nil {
		return 0, fmt.Errorf("record ingestion of %s: %w", path, err)
	}
	logger.Info("inserted ingestion record", "id", record.ID)

	return len(docs), nil
}

// IngestFiles ingests paths one after another, continuing past failures.
// It returns the total chunk count and every failure joined.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string, progress io.Writer) (int, error) {
	tracker := NewProgressTracker(progress, len(paths))
	tracker.Start()
	defer tracker.Finish()

	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := p.IngestFile(ctx, path)
		if err != nil {
			p.logger.Error("ingestion failed", "path", path, "err", err)
			tracker.FileFailed()
			errs = append(errs, err)
			continue
		}
		tracker.FileDone(n)
	}
	return tracker.Chunks(), errors.Join(errs...)
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return core.ChecksumReader(f)
}
