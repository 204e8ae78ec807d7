package retrieval

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 16

func seededStore(t *testing.T, n int) *badger.Store {
	t.Helper()
	store, err := badger.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	records := make([]*core.DocumentRecord, n)
	for i := range records {
		text := fmt.Sprintf("document %d", i)
		records[i] = &core.DocumentRecord{
			Content:   text,
			Embedding: mock.DeterministicVector(text, testDim),
			Metadata:  core.Metadata{"index": i},
		}
	}
	require.NoError(t, store.Documents().AddDocuments(context.Background(), records...))
	return store
}

func newEmbedder() *mock.MockEmbedder {
	e := mock.NewMockEmbedder()
	e.Dimension = testDim
	return e
}

func TestRetrieve_OrderedAndBounded(t *testing.T) {
	store := seededStore(t, 20)
	retriever, err := NewRetriever(store.Documents(), newEmbedder())
	require.NoError(t, err)

	for _, k := range []int{1, 3, 5, 20} {
		docs, err := retriever.Retrieve(context.Background(), "document 7", k)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(docs), k)
		for i := 1; i < len(docs); i++ {
			assert.GreaterOrEqual(t, docs[i-1].Similarity, docs[i].Similarity)
		}
		for _, d := range docs {
			// mock vectors are non-negative, so cosine similarity stays in [0, 1]
			assert.GreaterOrEqual(t, d.Similarity, 0.0)
			assert.LessOrEqual(t, d.Similarity, 1.0+1e-6)
		}
	}

	docs, err := retriever.Retrieve(context.Background(), "document 7", 3)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, "document 7", docs[0].Content, "identical text ranks first")
	assert.InDelta(t, 1.0, docs[0].Similarity, 1e-5)
}

func TestRetrieve_DefaultAndClampedK(t *testing.T) {
	store := seededStore(t, 30)
	retriever, err := NewRetriever(store.Documents(), newEmbedder(), WithTopK(4), WithMaxTopK(10))
	require.NoError(t, err)

	docs, err := retriever.Retrieve(context.Background(), "question", 0)
	require.NoError(t, err)
	assert.Len(t, docs, 4)

	docs, err = retriever.Retrieve(context.Background(), "question", 100)
	require.NoError(t, err)
	assert.Len(t, docs, 10)
}

func TestRetrieve_MinSimilarity(t *testing.T) {
	store := seededStore(t, 10)
	retriever, err := NewRetriever(store.Documents(), newEmbedder(), WithMinSimilarity(0.999))
	require.NoError(t, err)

	docs, err := retriever.Retrieve(context.Background(), "document 3", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "document 3", docs[0].Content)
}

func TestRetrieve_EmptyQuestion(t *testing.T) {
	embedder := newEmbedder()
	retriever, err := NewRetriever(seededStore(t, 1).Documents(), embedder)
	require.NoError(t, err)

	_, err = retriever.Retrieve(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, core.ErrEmptyQuestion)
	assert.Zero(t, embedder.CallCount())
}

func TestRetrieve_Timeout(t *testing.T) {
	embedder := newEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	retriever, err := NewRetriever(seededStore(t, 1).Documents(), embedder, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = retriever.Retrieve(context.Background(), "slow", 5)
	assert.ErrorIs(t, err, core.ErrRetrievalTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, embedder.CallCount(), "timeouts are not retried")
}

func TestRetrieve_IgnoringTransportReturnsOnDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	embedder := newEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		<-release
		return nil, ctx.Err()
	}
	retriever, err := NewRetriever(seededStore(t, 1).Documents(), embedder, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = retriever.Retrieve(context.Background(), "stuck", 5)
	assert.ErrorIs(t, err, core.ErrRetrievalTimeout)
}

func TestRetrieve_ParentCancelled(t *testing.T) {
	embedder := newEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	retriever, err := NewRetriever(seededStore(t, 1).Documents(), embedder)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = retriever.Retrieve(ctx, "cancelled", 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrRetrievalTimeout)
}

type countingMonitor struct{ calls atomic.Int32 }

func (m *countingMonitor) EmbeddingDone() { m.calls.Add(1) }

func TestRetrieveWithMonitor(t *testing.T) {
	retriever, err := NewRetriever(seededStore(t, 3).Documents(), newEmbedder())
	require.NoError(t, err)

	monitor := &countingMonitor{}
	_, err = retriever.RetrieveWithMonitor(context.Background(), "document 1", 2, monitor)
	require.NoError(t, err)
	assert.EqualValues(t, 1, monitor.calls.Load())
}

func TestNewRetriever_Validation(t *testing.T) {
	_, err := NewRetriever(nil, newEmbedder())
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewRetriever(seededStore(t, 0).Documents(), nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}
