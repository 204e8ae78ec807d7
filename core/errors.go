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


package core

import "errors"

// Pipeline error kinds. Callers match them with errors.Is; the underlying
// cause is usually wrapped alongside.
var (
	// ErrServiceUnavailable indicates a remote embedding or generation service
	// could not be reached after all retry attempts.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrMalformedResponse indicates a remote service answered with a body
	// whose shape is not understood.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnsupportedPayload indicates an ingested chunk is neither an
	// attribute-bearing document nor a mapping with content keys.
	ErrUnsupportedPayload = errors.New("unsupported chunk payload")

	// ErrEmbeddingCountMismatch indicates the embedding service returned a
	// different number of vectors than texts submitted.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")

	// ErrDimensionMismatch indicates a vector does not have the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrRetrievalTimeout indicates embedding plus similarity search exceeded its deadline.
	ErrRetrievalTimeout = errors.New("retrieval timed out")

	// ErrGenerationTimeout indicates the completion call or stream handshake
	// exceeded its deadline.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrInvalidIdentifier indicates a conversation id is not a valid UUID.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrEmptyQuestion indicates a query was submitted without question text.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrInvalidPagination indicates skip/limit values outside the accepted range.
	ErrInvalidPagination = errors.New("invalid pagination")
)
