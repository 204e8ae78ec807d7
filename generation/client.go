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


// Package generation answers questions from retrieved context, either as
// one completion or as a token stream tied to a conversation.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/prompt"
	"github.com/poiesic/docqa/retrieval"
	"github.com/poiesic/docqa/retry"
)

const (
	DefaultCompletionTimeout = 20 * time.Second
	DefaultHandshakeTimeout  = 30 * time.Second
)

var (
	ErrRetrieverRequired = errors.New("retriever required")
	ErrChatModelRequired = errors.New("chat model required")
	ErrHistoryRequired   = errors.New("history store required")
)

// Retriever is the part of retrieval.Retriever the client needs.
type Retriever interface {
	RetrieveWithMonitor(ctx context.Context, question string, k int, monitor retrieval.Monitor) ([]*core.RetrievedDoc, error)
}

// HistoryAppender persists a finished streamed exchange.
type HistoryAppender interface {
	Append(ctx context.Context, conversationID, question, answer string) error
}

// Client answers questions from retrieved context, either whole or streamed.
type Client struct {
	retriever         Retriever
	chat              ai.ChatModel
	history           HistoryAppender
	topK              int
	completionTimeout time.Duration
	handshakeTimeout  time.Duration
	monitor           Monitor
	logger            *slog.Logger
}

type Option func(*Client) error

// WithTopK sets k for retrieval. Zero leaves the retriever's default.
func WithTopK(k int) Option {
	return func(c *Client) error {
		c.topK = k
		return nil
	}
}

// WithCompletionTimeout bounds a synchronous completion call.
func WithCompletionTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("completion timeout must be positive, got %s", d)
		}
		c.completionTimeout = d
		return nil
	}
}

// WithHandshakeTimeout bounds establishing a stream. Token delivery after
// the handshake is not bounded.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("handshake timeout must be positive, got %s", d)
		}
		c.handshakeTimeout = d
		return nil
	}
}

func WithMonitor(monitor Monitor) Option {
	return func(c *Client) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		c.monitor = monitor
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

func NewClient(retriever Retriever, chat ai.ChatModel, history HistoryAppender, opts ...Option) (*Client, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if chat == nil {
		return nil, ErrChatModelRequired
	}
	if history == nil {
		return nil, ErrHistoryRequired
	}

	c := &Client{
		retriever:         retriever,
		chat:              chat,
		history:           history,
		completionTimeout: DefaultCompletionTimeout,
		handshakeTimeout:  DefaultHandshakeTimeout,
		monitor:           &noopMonitor{},
		logger:            slog.Default().With("component", "generation"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Answer retrieves context and returns a whole completion with its sources.
// Nothing is written to history.
func (c *Client) Answer(ctx context.Context, question string) (*core.Answer, error) {
	req := newRequest(c.monitor)

	docs, err := c.retrieve(ctx, req, question)
	if err != nil {
		return nil, err
	}

	text := prompt.Build(question, docs, nil)
	req.to(Generating)

	completionCtx, cancel := context.WithTimeout(ctx, c.completionTimeout)
	defer cancel()

	reply, err := c.chat.Complete(completionCtx, text)
	if err != nil {
		req.to(Failed)
		if ctx.Err() == nil && errors.Is(completionCtx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("completion timed out", "timeout", c.completionTimeout)
			return nil, fmt.Errorf("%w: completion after %s", core.ErrGenerationTimeout, c.completionTimeout)
		}
		return nil, upstreamError(err)
	}
	req.to(Completed)

	sources := make([]core.SourceSummary, len(docs))
	for i, d := range docs {
		sources[i] = d.Summary()
	}
	return &core.Answer{
		Text:    strings.TrimSpace(reply),
		Sources: sources,
	}, nil
}

func (c *Client) retrieve(ctx context.Context, req *request, question string) ([]*core.RetrievedDoc, error) {
	if err := core.ValidateQuestion(question); err != nil {
		req.to(Failed)
		return nil, err
	}
	req.to(Retrieving)
	docs, err := c.retriever.RetrieveWithMonitor(ctx, question, c.topK, req)
	if err != nil {
		req.to(Failed)
		return nil, err
	}
	if req.current() == Retrieving {
		// retrievers that do not report progress
		req.to(EmbeddingDone)
	}
	return docs, nil
}

// upstreamError marks transient transport failures as ServiceUnavailable.
func upstreamError(err error) error {
	if retry.IsTransient(err) {
		return fmt.Errorf("%w: generation service: %w", core.ErrServiceUnavailable, err)
	}
	return fmt.Errorf("generation: %w", err)
}
