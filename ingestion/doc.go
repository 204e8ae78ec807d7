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


// Package ingestion loads PDF files, splits them into chunks and persists
// the embedded chunks together with an ingestion audit record.
//
// Persisting embeddings runs on a Supervisor worker pool under its own
// timeout. When that timeout expires the foreground call returns the chunk
// count it already knows and the task keeps running in the background; its
// outcome is only logged. A persist failure reported before the timeout
// fails the ingestion and no audit record is written.
//
// A Watcher ingests PDFs that appear in a directory.
package ingestion
