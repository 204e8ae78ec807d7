// Package retrieval finds the stored chunks most similar to a question.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

const (
	DefaultTopK    = 5
	DefaultMaxTopK = 50
	DefaultTimeout = 10 * time.Second
)

var (
	ErrRepositoryRequired = errors.New("document repository required")
	ErrEmbedderRequired   = errors.New("embedder required")
)

// Monitor is notified once the question has been embedded.
type Monitor interface {
	EmbeddingDone()
}

type noopMonitor struct{}

func (noopMonitor) EmbeddingDone() {}

// Retriever embeds a question and asks the store for its nearest chunks.
// Each call is bounded by a single timeout covering embed and query, and
// is never retried.
type Retriever struct {
	repository    storage.DocumentRepository
	embedder      ai.Embedder
	topK          int
	maxTopK       int
	timeout       time.Duration
	minSimilarity float64
	logger        *slog.Logger
}

type Option func(*Retriever)

// WithTopK sets the k used when the caller passes k <= 0.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithMaxTopK caps caller-supplied k.
func WithMaxTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.maxTopK = k
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Retriever) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMinSimilarity drops hits scoring below min. Zero keeps every hit.
func WithMinSimilarity(min float64) Option {
	return func(r *Retriever) {
		r.minSimilarity = min
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRetriever(repository storage.DocumentRepository, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	r := &Retriever{
		repository: repository,
		embedder:   embedder,
		topK:       DefaultTopK,
		maxTopK:    DefaultMaxTopK,
		timeout:    DefaultTimeout,
		logger:     slog.Default().With("component", "retrieval"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.topK > r.maxTopK {
		r.topK = r.maxTopK
	}
	return r, nil
}

// Retrieve returns up to k documents in descending similarity.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]*core.RetrievedDoc, error) {
	return r.RetrieveWithMonitor(ctx, question, k, nil)
}

type result struct {
	docs []*core.RetrievedDoc
	err  error
}

// RetrieveWithMonitor is Retrieve, reporting to monitor when the question
// vector is ready.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, question string, k int, monitor Monitor) ([]*core.RetrievedDoc, error) {
	if err := core.ValidateQuestion(question); err != nil {
		return nil, err
	}
	if monitor == nil {
		monitor = noopMonitor{}
	}
	k = r.clamp(k)

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// buffered so the worker never blocks if we stop waiting
	done := make(chan result, 1)
	go func() {
		docs, err := r.retrieve(ctx, question, k, monitor)
		done <- result{docs: docs, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("retrieval timed out", "timeout", r.timeout)
		return nil, fmt.Errorf("%w after %s", core.ErrRetrievalTimeout, r.timeout)
	}
	return res.docs, res.err
}

func (r *Retriever) retrieve(ctx context.Context, question string, k int, monitor Monitor) ([]*core.RetrievedDoc, error) {
	vector, err := r.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	monitor.EmbeddingDone()

	docs, err := r.repository.FindSimilar(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}

	if r.minSimilarity > 0 {
		kept := docs[:0]
		for _, d := range docs {
			if d.Similarity >= r.minSimilarity {
				kept = append(kept, d)
			}
		}
		docs = kept
	}
	r.logger.Debug("retrieved documents", "k", k, "hits", len(docs))
	return docs, nil
}

func (r *Retriever) clamp(k int) int {
	if k <= 0 {
		return r.topK
	}
	if k > r.maxTopK {
		return r.maxTopK
	}
	return k
}
