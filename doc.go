// Copyright 2026 The Alice Authors
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

// Package alice is a personal assistant runtime with long-term memory.
//
// A turn runs the user's message through a fixed sequence of reasoning
// phases. First the assistant observes the environment and what it already
// knows. Then it drafts tool and memory queries, plans tasks, and acts
// through tools until it is ready to answer. Memories, tasks and documents
// live in a relational store and are found again through hybrid vector and
// keyword search.
//
// # Quick Start
//
//	go install github.com/wojcikm/alice/cmd/alice@latest
//	export OPENAI_API_KEY=...
//	alice chat "Remember that my trip to Paris is in June"
//	alice chat "When am I going to Paris?"
//
// Without a config file everything runs locally: sqlite under .alice/,
// an embedded chromem vector store and the hash embedder. See
// `alice schema` for every configuration option.
//
// # Packages
//
//   - pkg/agent: the turn orchestrator
//   - pkg/state: the per-turn state snapshot and its change events
//   - pkg/task: tasks and actions
//   - pkg/memory: remember, recall, update and forget
//   - pkg/chunker, pkg/extract: document ingestion
//   - pkg/index, pkg/search, pkg/vector: hybrid search
//   - pkg/runtime: wiring from configuration
//   - pkg/server: the HTTP API
package alice
