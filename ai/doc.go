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


// Package ai defines the contracts for the remote AI services used by docqa:
// an embedding service and an OpenAI-compatible chat model.
//
// # Interfaces
//
//   - Embedder: turns text into fixed-dimension vectors
//   - ChatModel: produces a completion, either whole or as a TokenStream
//   - AIProvider: aggregates both for convenient initialization
//
// Implementations here are transports. They make one remote call per method
// invocation. Batching and retries belong to the consuming packages
// (embedding, generation).
//
// # Implementation Packages
//
//   - ai/tei: embedding transport for {"inputs": [...]} endpoints
//   - ai/openai: OpenAI-compatible embeddings and chat completion
//   - ai/mock: deterministic test doubles
//
// Public constructors return interface types. Mock constructors return
// concrete types so tests can inject behavior and assert call counts.
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	stream, err := provider.ChatModel().Stream(ctx, prompt)
package ai
