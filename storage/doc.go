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


// Package storage provides the storage abstraction layer for docqa.
//
// Repository interfaces decouple the pipeline from the backend. Two backends
// implement them:
//
//   - storage/postgres: PostgreSQL with the pgvector extension. Similarity
//     search is delegated to the database's cosine distance operator.
//   - storage/badger: an embedded BadgerDB store for single-node use and tests.
//     Similarity search scans the stored vectors.
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.Store interface:
//
//	store, err := postgres.Open(ctx, url, postgres.WithDimension(768))
//	store, err := badger.Open("/path/to/db")
//	store, err := badger.OpenMemory() // tests
//
// # Transactions
//
// AddDocuments is the only multi-row write and is atomic. History and
// ingestion writes are single-row inserts.
//
// # Thread Safety
//
// All repository implementations must be thread-safe. Each operation acquires
// what it needs from the backend (a pooled connection, a badger transaction)
// and releases it before returning, on every path.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
