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

// Package config loads the runtime configuration from YAML.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/wojcikm/alice/pkg/embedder"
	"github.com/wojcikm/alice/pkg/observability"
	"github.com/wojcikm/alice/pkg/utils"
	"github.com/wojcikm/alice/pkg/vector"
)

// Config is the root configuration.
type Config struct {
	Log           LoggerConfig          `yaml:"log,omitempty" json:"log,omitempty"`
	Database      DatabaseConfig        `yaml:"database,omitempty" json:"database,omitempty"`
	LLM           LLMConfig             `yaml:"llm,omitempty" json:"llm,omitempty"`
	Embedder      embedder.Config       `yaml:"embedder,omitempty" json:"embedder,omitempty"`
	Vector        vector.ProviderConfig `yaml:"vector,omitempty" json:"vector,omitempty"`
	Keyword       KeywordConfig         `yaml:"keyword,omitempty" json:"keyword,omitempty"`
	Chunker       ChunkerConfig         `yaml:"chunker,omitempty" json:"chunker,omitempty"`
	Agent         AgentConfig           `yaml:"agent,omitempty" json:"agent,omitempty"`
	Tools         ToolsConfig           `yaml:"tools,omitempty" json:"tools,omitempty"`
	Observability observability.Config  `yaml:"observability,omitempty" json:"observability,omitempty"`
	Server        ServerConfig          `yaml:"server,omitempty" json:"server,omitempty"`
}

// Default returns a configuration with every default applied. It runs
// fully locally: sqlite, embedded chromem and the hash embedder.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func (c *Config) SetDefaults() {
	c.Log.SetDefaults()
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
		if c.Database.Database == "" {
			c.Database.Database = filepath.Join(utils.DataDirName, "alice.db")
		}
	}
	c.Database.SetDefaults()
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.Vector.SetDefaults()
	c.Keyword.SetDefaults()
	c.Chunker.SetDefaults()
	c.Agent.SetDefaults()
	c.Tools.SetDefaults()
	c.Observability.SetDefaults()
	c.Server.SetDefaults()
}

func (c *Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"log", c.Log.Validate},
		{"database", c.Database.Validate},
		{"llm", c.LLM.Validate},
		{"embedder", c.Embedder.Validate},
		{"vector", c.Vector.Validate},
		{"keyword", c.Keyword.Validate},
		{"chunker", c.Chunker.Validate},
		{"agent", c.Agent.Validate},
		{"tools", c.Tools.Validate},
		{"observability", c.Observability.Validate},
		{"server", c.Server.Validate},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%s: %w", check.name, err)
		}
	}
	return nil
}

// KeywordConfig selects the keyword index backend.
type KeywordConfig struct {
	// Backend is "memory" (in-process) or "sql" (scan over the documents table).
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"enum=memory,enum=sql,default=sql"`
}

func (c *KeywordConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sql"
	}
}

func (c *KeywordConfig) Validate() error {
	switch c.Backend {
	case "memory", "sql":
		return nil
	default:
		return fmt.Errorf("invalid backend %q (valid: memory, sql)", c.Backend)
	}
}

// ChunkerConfig controls document splitting on ingestion.
type ChunkerConfig struct {
	Encoding string `yaml:"encoding,omitempty" json:"encoding,omitempty" jsonschema:"default=cl100k_base"`
	Limit    int    `yaml:"limit,omitempty" json:"limit,omitempty" jsonschema:"minimum=1,default=1000"`
}

func (c *ChunkerConfig) SetDefaults() {
	if c.Encoding == "" {
		c.Encoding = utils.DefaultEncoding
	}
	if c.Limit == 0 {
		c.Limit = 1000
	}
}

func (c *ChunkerConfig) Validate() error {
	if c.Limit < 1 {
		return fmt.Errorf("limit must be positive")
	}
	return nil
}
