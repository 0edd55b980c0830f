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

package vector

import (
	"fmt"
	"path/filepath"

	"github.com/wojcikm/alice/pkg/utils"
)

// ProviderType identifies a vector provider implementation.
type ProviderType string

const (
	// ProviderChromem is embedded and needs no external service.
	ProviderChromem ProviderType = "chromem"

	// ProviderQdrant talks to a Qdrant server over gRPC.
	ProviderQdrant ProviderType = "qdrant"

	// ProviderPinecone uses a managed Pinecone index.
	ProviderPinecone ProviderType = "pinecone"
)

// ProviderConfig is the configuration for creating vector providers.
type ProviderConfig struct {
	Type ProviderType `yaml:"type" json:"type" jsonschema:"enum=chromem,enum=qdrant,enum=pinecone,default=chromem"`

	// Collection holds every indexed document.
	Collection string `yaml:"collection" json:"collection" jsonschema:"default=documents"`

	Chromem  *ChromemConfig  `yaml:"chromem,omitempty" json:"chromem,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty" json:"qdrant,omitempty"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty" json:"pinecone,omitempty"`
}

// SetDefaults applies default values.
func (c *ProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderChromem
	}
	if c.Collection == "" {
		c.Collection = "documents"
	}
	if c.Type == ProviderChromem && c.Chromem == nil {
		c.Chromem = &ChromemConfig{PersistPath: filepath.Join(utils.DataDirName, "vectors")}
	}
}

// Validate checks the configuration.
func (c *ProviderConfig) Validate() error {
	switch c.Type {
	case ProviderChromem:
		return nil
	case ProviderQdrant:
		if c.Qdrant == nil {
			return fmt.Errorf("qdrant configuration is required")
		}
		if c.Qdrant.Host == "" {
			return fmt.Errorf("qdrant host is required")
		}
		return nil
	case ProviderPinecone:
		if c.Pinecone == nil {
			return fmt.Errorf("pinecone configuration is required")
		}
		if c.Pinecone.APIKey == "" {
			return fmt.Errorf("pinecone api_key is required")
		}
		return nil
	case "":
		return fmt.Errorf("provider type is required")
	default:
		return fmt.Errorf("unknown provider type: %q", c.Type)
	}
}

// NewProvider creates a vector provider from configuration. A nil config
// yields a NilProvider.
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		return NilProvider{}, nil
	}

	switch cfg.Type {
	case ProviderChromem:
		chromemCfg := ChromemConfig{}
		if cfg.Chromem != nil {
			chromemCfg = *cfg.Chromem
		}
		return NewChromemProvider(chromemCfg)

	case ProviderQdrant:
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant configuration is required")
		}
		return NewQdrantProvider(*cfg.Qdrant)

	case ProviderPinecone:
		if cfg.Pinecone == nil {
			return nil, fmt.Errorf("pinecone configuration is required")
		}
		return NewPineconeProvider(*cfg.Pinecone)

	default:
		return nil, fmt.Errorf("unknown provider type: %q", cfg.Type)
	}
}
