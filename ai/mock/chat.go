package mock

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/poiesic/docqa/ai"
)

// MockChatModel is a test double for ai.ChatModel.
type MockChatModel struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete returns Answer.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)

	// StreamFunc is called by Stream if set.
	// If nil, Stream returns a MockTokenStream over Tokens.
	StreamFunc func(ctx context.Context, prompt string) (ai.TokenStream, error)

	// Answer is the default completion.
	Answer string

	// Tokens is the default streamed completion.
	Tokens []string

	completeCalls atomic.Int64
	streamCalls   atomic.Int64

	mu      sync.Mutex
	prompts []string
	streams []*MockTokenStream
}

// NewMockChatModel creates a chat model answering "mock answer" and
// streaming the same text in three tokens.
func NewMockChatModel() *MockChatModel {
	return &MockChatModel{
		Answer: "mock answer",
		Tokens: []string{"mock", " ", "answer"},
	}
}

func (m *MockChatModel) Complete(ctx context.Context, prompt string) (string, error) {
	m.completeCalls.Add(1)
	m.record(prompt)

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return m.Answer, nil
}

func (m *MockChatModel) Stream(ctx context.Context, prompt string) (ai.TokenStream, error) {
	m.streamCalls.Add(1)
	m.record(prompt)

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, prompt)
	}
	stream := NewMockTokenStream(ctx, m.Tokens...)
	m.mu.Lock()
	m.streams = append(m.streams, stream)
	m.mu.Unlock()
	return stream, nil
}

func (m *MockChatModel) record(prompt string) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
}

// CompleteCalls returns the number of Complete calls.
func (m *MockChatModel) CompleteCalls() int {
	return int(m.completeCalls.Load())
}

// StreamCalls returns the number of Stream calls.
func (m *MockChatModel) StreamCalls() int {
	return int(m.streamCalls.Load())
}

// Prompts returns every prompt received, in call order.
func (m *MockChatModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastStream returns the most recent default stream, or nil.
func (m *MockChatModel) LastStream() *MockTokenStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

// MockTokenStream replays a fixed token list. When FailAfter is set, Recv
// returns Err instead of the token at that index.
type MockTokenStream struct {
	ctx    context.Context
	tokens []string

	// FailAfter is the number of tokens delivered before Err is returned.
	// Negative disables failure injection.
	FailAfter int
	Err       error

	pulled atomic.Int64
	closed atomic.Bool
}

// NewMockTokenStream creates a stream bound to ctx: once ctx is done Recv
// returns its error.
func NewMockTokenStream(ctx context.Context, tokens ...string) *MockTokenStream {
	return &MockTokenStream{ctx: ctx, tokens: tokens, FailAfter: -1}
}

func (s *MockTokenStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	i := int(s.pulled.Load())
	if s.FailAfter >= 0 && i >= s.FailAfter {
		return "", s.Err
	}
	if i >= len(s.tokens) {
		return "", io.EOF
	}
	s.pulled.Add(1)
	return s.tokens[i], nil
}

func (s *MockTokenStream) Close() error {
	s.closed.Store(true)
	return nil
}

// Pulled returns how many tokens have been handed out.
func (s *MockTokenStream) Pulled() int {
	return int(s.pulled.Load())
}

// Closed reports whether Close was called.
func (s *MockTokenStream) Closed() bool {
	return s.closed.Load()
}
