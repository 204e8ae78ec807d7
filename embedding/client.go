package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/retry"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize      = 32
	DefaultMaxAttempts    = 5
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

// Client is the embedding client used by ingestion and retrieval. It splits
// input into fixed-size batches and retries each batch on transport failures
// with linear backoff. It implements ai.Embedder, so it can wrap any transport.
type Client struct {
	transport   ai.Embedder
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

var _ ai.Embedder = (*Client)(nil)

type Option func(*Client) error

// WithBatchSize sets how many texts are sent per remote call.
func WithBatchSize(size int) Option {
	return func(c *Client) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		c.batchSize = size
		return nil
	}
}

// WithRetry sets the attempt count per batch and the backoff base.
// Failed attempt n waits base*n before the next one.
func WithRetry(maxAttempts int, base time.Duration) Option {
	return func(c *Client) error {
		if maxAttempts < 1 {
			return retry.ErrInvalidMaxAttempts
		}
		c.maxAttempts = maxAttempts
		c.baseDelay = base
		return nil
	}
}

// WithRateLimit caps remote calls per second. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 {
			c.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// NewClient wraps transport with batching and retry.
func NewClient(transport ai.Embedder, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, ErrTransportRequired
	}
	c := &Client{
		transport:   transport,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultRetryBaseDelay,
		logger:      slog.Default().With("component", "embedding-client"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// EmbedText embeds a single text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, received %d", core.ErrMalformedResponse, len(vectors))
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts batch by batch and concatenates the results in
// input order. Any batch failing aborts the call; no partial result is returned.
// A batch whose retries are exhausted fails with core.ErrServiceUnavailable.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batches := (len(texts) + c.batchSize - 1) / c.batchSize
	vectors := make([][]float32, 0, len(texts))

	for b := 0; b < batches; b++ {
		start := b * c.batchSize
		end := min(start+c.batchSize, len(texts))

		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			c.logger.Error("embedding batch failed", "batch", b+1, "batches", batches, "err", err)
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	c.logger.Debug("embedded texts", "count", len(texts), "batches", batches)
	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := retry.WithLinearBackoff(ctx, func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		result, err = c.transport.EmbedTexts(ctx, texts)
		return err
	}, c.maxAttempts, c.baseDelay, retry.IsTransient)

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, retry.ErrExhausted):
		return nil, fmt.Errorf("%w: embedding service: %w", core.ErrServiceUnavailable, err)
	default:
		return nil, err
	}
}
