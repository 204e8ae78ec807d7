package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRepository records whether storage was reached.
type countingRepository struct {
	mu    sync.Mutex
	calls int
	turns []*core.ConversationTurn
}

func (r *countingRepository) AppendTurn(ctx context.Context, turn *core.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.turns = append(r.turns, turn)
	return nil
}

func (r *countingRepository) GetTurns(ctx context.Context, id uuid.UUID) ([]*core.ConversationTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.turns, nil
}

func TestInvalidIdentifier_NoStorageAccess(t *testing.T) {
	repo := &countingRepository{}
	store, err := NewStore(repo)
	require.NoError(t, err)

	for _, id := range []string{"not-a-uuid", "", "1234", "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz"} {
		_, err := store.Get(context.Background(), id)
		assert.ErrorIs(t, err, core.ErrInvalidIdentifier, "get %q", id)

		err = store.Append(context.Background(), id, "q", "a")
		assert.ErrorIs(t, err, core.ErrInvalidIdentifier, "append %q", id)
	}
	assert.Zero(t, repo.calls)
}

func TestAppendThenGet(t *testing.T) {
	backend, err := badger.OpenMemory()
	require.NoError(t, err)
	defer backend.Close()

	store, err := NewStore(backend.History())
	require.NoError(t, err)
	ctx := context.Background()
	id := NewConversationID()

	require.NoError(t, store.Append(ctx, id, "first?", "one"))
	require.NoError(t, store.Append(ctx, id, "second?", "two"))

	turns, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "first?", turns[0].Question)
	assert.Equal(t, "two", turns[1].Answer)
	assert.Equal(t, id, turns[0].ConversationID.String())

	other, err := store.Get(ctx, NewConversationID())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestInterleavedAppends_OrderedByCreatedAt(t *testing.T) {
	backend, err := badger.OpenMemory()
	require.NoError(t, err)
	defer backend.Close()

	// each append is stamped from its own slot so arrival order is scrambled
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	stamps := make(chan time.Time, 16)
	for _, offset := range []int{5, 2, 9, 0, 7, 1, 3, 8, 4, 6} {
		stamps <- base.Add(time.Duration(offset) * time.Second)
	}
	store, err := NewStore(backend.History(), WithClock(func() time.Time { return <-stamps }))
	require.NoError(t, err)

	ctx := context.Background()
	id := NewConversationID()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Append(ctx, id, fmt.Sprintf("q%d", i), "a"))
		}(i)
	}
	wg.Wait()

	turns, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 10)
	for i, turn := range turns {
		assert.Equal(t, base.Add(time.Duration(i)*time.Second), turn.CreatedAt.UTC())
	}

	again, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, turns, again, "reads are repeatable")
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)
}
