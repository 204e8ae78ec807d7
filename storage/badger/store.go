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


package badger

import (
	"context"
	"errors"

	"github.com/poiesic/docqa/storage"
)

// Store implements storage.Store on an embedded BadgerDB.
type Store struct {
	backend    *Backend
	documents  *DocumentRepository
	history    *HistoryRepository
	ingestions *IngestionRepository
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) a store in the directory at path.
//
// Returns storage.Store interface to enforce abstraction.
func Open(path string) (storage.Store, error) {
	s, err := open(path, false)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func open(path string, inMemory bool) (*Store, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	documents, err := newDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	history, err := newHistoryRepository(backend)
	if err != nil {
		documents.close()
		backend.Close()
		return nil, err
	}

	return &Store{
		backend:    backend,
		documents:  documents,
		history:    history,
		ingestions: &IngestionRepository{backend: backend},
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
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Close releases sequence leases before closing the database.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return errors.Join(
		s.documents.close(),
		s.history.close(),
		s.backend.Close(),
	)
}
