package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/history"
	"github.com/poiesic/docqa/prompt"
	"github.com/poiesic/docqa/retrieval"
	"github.com/poiesic/docqa/retry"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMonitor struct {
	mu          sync.Mutex
	transitions []string
}

func (m *recordingMonitor) Transition(from, to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from.String()+">"+to.String())
}

func (m *recordingMonitor) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.transitions...)
}

func (m *recordingMonitor) last() string {
	all := m.all()
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

type fixture struct {
	store    *badger.Store
	embedder *mock.MockEmbedder
	chat     *mock.MockChatModel
	history  *history.Store
	monitor  *recordingMonitor
	client   *Client
}

func newFixture(t *testing.T, retrievalOpts []retrieval.Option, opts ...Option) *fixture {
	t.Helper()
	store, err := badger.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		text := fmt.Sprintf("passage %d", i)
		require.NoError(t, store.Documents().AddDocuments(ctx, &core.DocumentRecord{
			Content:   text,
			Embedding: mock.DeterministicVector(text, 8),
			Metadata:  core.Metadata{"source": "doc.pdf"},
		}))
	}

	retriever, err := retrieval.NewRetriever(store.Documents(), embedder, retrievalOpts...)
	require.NoError(t, err)
	hist, err := history.NewStore(store.History())
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		embedder: embedder,
		chat:     mock.NewMockChatModel(),
		history:  hist,
		monitor:  &recordingMonitor{},
	}
	opts = append([]Option{WithMonitor(f.monitor)}, opts...)
	f.client, err = NewClient(retriever, f.chat, hist, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) turns(t *testing.T, id string) []*core.ConversationTurn {
	t.Helper()
	turns, err := f.history.Get(context.Background(), id)
	require.NoError(t, err)
	return turns
}

func TestAnswer(t *testing.T) {
	f := newFixture(t, nil)
	f.chat.Answer = "  forty-two \n"

	answer, err := f.client.Answer(context.Background(), "passage 1")
	require.NoError(t, err)
	assert.Equal(t, "forty-two", answer.Text)
	require.Len(t, answer.Sources, 3)
	assert.InDelta(t, 1.0, answer.Sources[0].Similarity, 1e-5)
	assert.Equal(t, "doc.pdf", answer.Sources[0].Metadata["source"])

	assert.Equal(t, []string{
		"started>retrieving",
		"retrieving>embedding-done",
		"embedding-done>generating",
		"generating>completed",
	}, f.monitor.all())

	prompts := f.chat.Prompts()
	require.Len(t, prompts, 1)
	assert.True(t, strings.HasPrefix(prompts[0], "You are a helpful assistant."))
	assert.Contains(t, prompts[0], "Question: passage 1\nAnswer:")
	assert.Contains(t, prompts[0], "Conversation so far:\n"+prompt.EmptyHistory, "sync answers share the streaming template")
	assert.Equal(t, 1, f.embedder.CallCount(), "question embedded once")
}

func TestAnswer_CompletionTimeout(t *testing.T) {
	f := newFixture(t, nil, WithCompletionTimeout(20*time.Millisecond))
	f.chat.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	_, err := f.client.Answer(context.Background(), "slow")
	assert.ErrorIs(t, err, core.ErrGenerationTimeout)
	assert.Equal(t, "generating>failed", f.monitor.last())
	assert.Equal(t, 1, f.chat.CompleteCalls(), "not retried")
}

func TestAnswer_TransientFailureIsServiceUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.chat.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", retry.Transient(errors.New("connection refused"))
	}

	_, err := f.client.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, core.ErrServiceUnavailable)
}

func TestAnswer_RetrievalTimeout(t *testing.T) {
	f := newFixture(t, []retrieval.Option{retrieval.WithTimeout(20 * time.Millisecond)})
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := f.client.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, core.ErrRetrievalTimeout)
	assert.Zero(t, f.chat.CompleteCalls())
	assert.Equal(t, "retrieving>failed", f.monitor.last())
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.client.Answer(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrEmptyQuestion)
	assert.Zero(t, f.embedder.CallCount())
}

func TestNewClient_Validation(t *testing.T) {
	f := newFixture(t, nil)
	retriever, err := retrieval.NewRetriever(f.store.Documents(), f.embedder)
	require.NoError(t, err)

	_, err = NewClient(nil, f.chat, f.history)
	assert.ErrorIs(t, err, ErrRetrieverRequired)
	_, err = NewClient(retriever, nil, f.history)
	assert.ErrorIs(t, err, ErrChatModelRequired)
	_, err = NewClient(retriever, f.chat, nil)
	assert.ErrorIs(t, err, ErrHistoryRequired)
	_, err = NewClient(retriever, f.chat, f.history, WithHandshakeTimeout(0))
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "embedding-done", EmbeddingDone.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, Cancelled.Terminal())
	assert.False(t, Generating.Terminal())
}

// slowStream delivers tokens with a delay, ignoring the handshake timer.
type slowStream struct {
	tokens []string
	delay  time.Duration
	i      int
}

func (s *slowStream) Recv() (string, error) {
	if s.i >= len(s.tokens) {
		return "", io.EOF
	}
	time.Sleep(s.delay)
	s.i++
	return s.tokens[s.i-1], nil
}

func (s *slowStream) Close() error { return nil }

var _ ai.TokenStream = (*slowStream)(nil)
