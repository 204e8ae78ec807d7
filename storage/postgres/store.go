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


// Package postgres implements storage.Store on PostgreSQL with the pgvector
// extension. Similarity search uses the <=> cosine distance operator.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/poiesic/docqa/storage"
)

const defaultPoolSize = 10

// Options configures Open.
type Options struct {
	// PoolSize is the maximum number of pooled connections.
	PoolSize int32

	// MigrateDimension, when positive, applies the schema before the pool is
	// opened, sizing the embedding column to this width.
	MigrateDimension int
}

// Store implements storage.Store on a pgx connection pool.
type Store struct {
	pool       *pgxpool.Pool
	documents  *DocumentRepository
	history    *HistoryRepository
	ingestions *IngestionRepository
}

var _ storage.Store = (*Store)(nil)

// Open connects to the database at url.
func Open(ctx context.Context, url string, opts Options) (*Store, error) {
	if opts.MigrateDimension > 0 {
		if err := Migrate(ctx, url, opts.MigrateDimension); err != nil {
			return nil, err
		}
	}

	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	config.MaxConns = opts.PoolSize
	if config.MaxConns <= 0 {
		config.MaxConns = defaultPoolSize
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	slog.Debug("postgres pool opened", "host", config.ConnConfig.Host, "max_conns", config.MaxConns)

	return &Store{
		pool:       pool,
		documents:  &DocumentRepository{pool: pool},
		history:    &HistoryRepository{pool: pool},
		ingestions: &IngestionRepository{pool: pool},
	}, nil
}

func (s *Store) Documents() storage.DocumentRepository {
	return s.documents
}

func (s *Store) History() storage.HistoryRepository {
	return s.history
}

func (s *Store) Ingestions() storage.IngestionRepository {
	return s.ingestions
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
