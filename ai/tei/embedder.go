package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/retry"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 64 << 20

// Embedder implements ai.Embedder against a text-embeddings-inference style
// endpoint: POST {host}/embed with {"inputs": [...]}.
type Embedder struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Embedder{
		endpoint: config.EmbeddingHost + "/embed",
		apiKey:   config.APIKey,
		client:   &http.Client{Timeout: config.HTTPTimeout},
		logger:   slog.Default().With("component", "tei-embedder"),
	}, nil
}

// NewEmbedder creates a TEI embedding transport.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText embeds a single text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vector returned", core.ErrMalformedResponse)
	}
	return vectors[0], nil
}

// EmbedTexts makes exactly one request for all texts.
// Connection failures, 429 and 5xx responses are marked transient.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("requesting embeddings", "count", len(texts))

	body, err := json.Marshal(embedRequest{Inputs: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" && e.apiKey != "none" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.Transient(fmt.Errorf("tei: post %s: %w", e.endpoint, err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("tei: read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retry.Transient(fmt.Errorf("tei: %s", resp.Status))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("tei: request rejected: %s: %s", resp.Status, truncate(payload, 256))
	}

	vectors, err := DecodeEmbeddings(payload)
	if err != nil {
		e.logger.Error("unrecognized embedding response", "err", err)
		return nil, err
	}
	return vectors, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
