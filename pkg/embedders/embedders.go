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

// Package embedders implements embedder.Embedder for OpenAI compatible
// APIs, Ollama and a local hashing model.
package embedders

import (
	"fmt"

	"github.com/wojcikm/alice/pkg/embedder"
)

// New creates the embedder selected by cfg. Defaults are applied first.
func New(cfg embedder.Config) (embedder.Embedder, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case embedder.ProviderOpenAI:
		return NewOpenAIEmbedder(cfg)
	case embedder.ProviderOllama:
		return NewOllamaEmbedder(cfg), nil
	case embedder.ProviderHash:
		return NewHashEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", cfg.Provider)
	}
}
