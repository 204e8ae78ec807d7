// Package history reads and appends conversation turns.
//
// Every method validates the conversation identifier before touching
// storage, blocks until the repository call finishes, and honors ctx.
// A Store is safe for concurrent use. Concurrent appends to one
// conversation are stored in completion order.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// ErrRepositoryRequired is returned when no history repository is provided.
var ErrRepositoryRequired = errors.New("history repository required")

type Store struct {
	repository storage.HistoryRepository
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(repository storage.HistoryRepository, opts ...Option) (*Store, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	s := &Store{
		repository: repository,
		now:        time.Now,
		logger:     slog.Default().With("component", "history"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the conversation's turns, oldest first.
func (s *Store) Get(ctx context.Context, conversationID string) ([]*core.ConversationTurn, error) {
	id, err := core.ParseConversationID(conversationID)
	if err != nil {
		return nil, err
	}
	turns, err := s.repository.GetTurns(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", id, err)
	}
	return turns, nil
}

// Append stores one completed exchange.
func (s *Store) Append(ctx context.Context, conversationID, question, answer string) error {
	id, err := core.ParseConversationID(conversationID)
	if err != nil {
		return err
	}
	turn := &core.ConversationTurn{
		ConversationID: id,
		Question:       question,
		Answer:         answer,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repository.AppendTurn(ctx, turn); err != nil {
		return fmt.Errorf("append history %s: %w", id, err)
	}
	s.logger.Debug("history appended", "conversation_id", id, "answer_len", len(answer))
	return nil
}

// NewConversationID returns a fresh identifier for a conversation that has
// no turns yet.
func NewConversationID() string {
	return uuid.NewString()
}
