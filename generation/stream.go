package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/prompt"
)

// Stream is an established token stream for one question.
//
// Tokens may be ranged over once. The answer is appended to history only
// when the upstream finishes without error and the consumer read every
// token. A failed or abandoned stream leaves no history row.
type Stream struct {
	conversationID string
	question       string

	// parent is the caller's context; history is written on a detached copy.
	parent    context.Context
	streamCtx context.Context
	upstream  ai.TokenStream
	cancel    context.CancelFunc
	history   HistoryAppender
	req       *request
	logger    *slog.Logger

	used      atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Stream retrieves context, builds the prompt with history and opens a
// streamed completion. Only the handshake is bounded by the handshake
// timeout; ctx governs the stream for its whole life.
func (c *Client) Stream(ctx context.Context, conversationID, question string, history []*core.ConversationTurn) (*Stream, error) {
	req := newRequest(c.monitor)
	if _, err := core.ParseConversationID(conversationID); err != nil {
		req.to(Failed)
		return nil, err
	}

	docs, err := c.retrieve(ctx, req, question)
	if err != nil {
		return nil, err
	}

	text := prompt.Build(question, docs, history)
	req.to(Generating)

	streamCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(c.handshakeTimeout, cancel)
	upstream, err := c.chat.Stream(streamCtx, text)
	if !timer.Stop() {
		// the timer already cancelled streamCtx
		if upstream != nil {
			upstream.Close()
		}
		cancel()
		req.to(Failed)
		c.logger.Warn("stream handshake timed out", "timeout", c.handshakeTimeout)
		return nil, fmt.Errorf("%w: stream handshake after %s", core.ErrGenerationTimeout, c.handshakeTimeout)
	}
	if err != nil {
		cancel()
		req.to(Failed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, upstreamError(err)
	}

	return &Stream{
		conversationID: conversationID,
		question:       question,
		parent:         ctx,
		streamCtx:      streamCtx,
		upstream:       upstream,
		cancel:         cancel,
		history:        c.history,
		req:            req,
		logger:         c.logger.With("conversation_id", conversationID),
	}, nil
}

// ConversationID returns the conversation this stream belongs to.
func (s *Stream) ConversationID() string {
	return s.conversationID
}

// State returns the request state, terminal once Tokens has returned.
func (s *Stream) State() State {
	return s.req.current()
}

// Tokens returns the token sequence. Empty tokens are skipped. A second
// range over the sequence yields nothing.
func (s *Stream) Tokens() iter.Seq[string] {
	return func(yield func(string) bool) {
		if !s.used.CompareAndSwap(false, true) {
			return
		}
		defer s.release()

		var answer strings.Builder
		for {
			if s.streamCtx.Err() != nil {
				s.abandon("context done")
				return
			}
			token, err := s.upstream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if s.streamCtx.Err() != nil {
					s.abandon("context done")
					return
				}
				s.logger.Error("stream failed", "err", err, "received", answer.Len())
				s.req.to(Failed)
				return
			}
			if token == "" {
				continue
			}
			answer.WriteString(token)
			if !yield(token) {
				s.abandon("consumer stopped")
				return
			}
		}

		s.persist(answer.String())
	}
}

func (s *Stream) abandon(reason string) {
	s.logger.Info("stream cancelled, answer discarded", "reason", reason)
	s.req.to(Cancelled)
}

func (s *Stream) persist(answer string) {
	// the caller may already be gone; the write must not inherit its cancellation
	ctx := context.WithoutCancel(s.parent)
	if err := s.history.Append(ctx, s.conversationID, s.question, answer); err != nil {
		s.logger.Error("history write failed", "err", err)
		s.req.to(Failed)
		return
	}
	s.req.to(Completed)
}

// Close releases the upstream connection. Closing before Tokens is ranged
// over cancels the request. Close is safe to call more than once and
// concurrently with Tokens.
func (s *Stream) Close() error {
	if s.used.CompareAndSwap(false, true) {
		s.abandon("closed before consumption")
	}
	s.release()
	return s.closeErr
}

func (s *Stream) release() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.upstream.Close()
	})
}
