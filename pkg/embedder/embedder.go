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

// Package embedder defines the text embedding contract used by the vector
// index.
package embedder

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings from text.
type Embedder interface {
	// Embed converts text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// Model returns the model name being used.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

// Config selects and configures an embedder.
type Config struct {
	Provider   string `yaml:"provider" json:"provider" jsonschema:"enum=openai,enum=ollama,enum=hash,default=hash"`
	Model      string `yaml:"model,omitempty" json:"model,omitempty"`
	APIKey     string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Dimension  int    `yaml:"dimension,omitempty" json:"dimension,omitempty"`
	BatchSize  int    `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	Timeout    int    `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=Request timeout in seconds"`
	MaxRetries int    `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

// SetDefaults applies provider specific defaults.
func (c *Config) SetDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderHash
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}

	switch c.Provider {
	case ProviderOpenAI:
		if c.Model == "" {
			c.Model = "text-embedding-3-small"
		}
		if c.BaseURL == "" {
			c.BaseURL = "https://api.openai.com/v1"
		}
		if c.Dimension == 0 {
			switch c.Model {
			case "text-embedding-3-large":
				c.Dimension = 3072
			default:
				c.Dimension = 1536
			}
		}
	case ProviderOllama:
		if c.Model == "" {
			c.Model = "nomic-embed-text"
		}
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
		if c.Dimension == 0 {
			c.Dimension = 768
		}
	case ProviderHash:
		if c.Model == "" {
			c.Model = "hash-bow"
		}
		if c.Dimension == 0 {
			c.Dimension = 512
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for the openai embedder")
		}
	case ProviderOllama, ProviderHash:
	default:
		return fmt.Errorf("unknown embedder provider: %q", c.Provider)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("embedder dimension must be positive")
	}
	return nil
}
