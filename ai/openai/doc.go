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


// Package openai provides AI service implementations for OpenAI-compatible APIs
// (OpenAI itself, Ollama, vLLM, LocalAI).
//
// Embeddings go through langchaingo's embeddings wrapper. Chat completions use
// go-openai, whose streaming client separates establishing the stream from
// reading it; the generation package relies on that split to bound the
// handshake without bounding the stream.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithGenerationHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithGenerationModel("llama3.1:8b"),
//	)
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	answer, err := provider.ChatModel().Complete(ctx, prompt)
package openai
