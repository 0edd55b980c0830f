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

package config

import (
	"fmt"
	"os"
)

// LLMProvider identifies the completion backend.
type LLMProvider string

const (
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig configures the completion service.
type LLMConfig struct {
	Provider LLMProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"enum=openai,enum=gemini,default=openai"`

	// APIKey supports ${VAR} expansion and falls back to the provider's
	// environment variable.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// BaseURL points the OpenAI client at a compatible server.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"default=gpt-4o-mini"`

	// AltModel serves the cheap classification phases. Defaults to Model.
	AltModel string `yaml:"alt_model,omitempty" json:"alt_model,omitempty"`

	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"minimum=0,maximum=2,default=0.7"`
	MaxTokens   int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"minimum=1,default=16384"`

	// Timeout is the per-request timeout in seconds.
	Timeout    int `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"default=120"`
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"default=3"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = detectProviderFromEnv()
	}
	if c.Model == "" {
		switch c.Provider {
		case LLMProviderGemini:
			c.Model = "gemini-2.0-flash"
		default:
			c.Model = "gpt-4o-mini"
		}
	}
	if c.AltModel == "" {
		c.AltModel = c.Model
	}
	if c.APIKey == "" {
		c.APIKey = GetProviderAPIKey(string(c.Provider))
	}
	if c.Temperature == nil {
		temp := 0.7
		c.Temperature = &temp
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 16384
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderOpenAI, LLMProviderGemini:
	default:
		return fmt.Errorf("invalid provider %q (valid: openai, gemini)", c.Provider)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	return nil
}

// detectProviderFromEnv prefers OpenAI unless only a Gemini key is set.
func detectProviderFromEnv() LLMProvider {
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("GEMINI_API_KEY") != "" {
		return LLMProviderGemini
	}
	return LLMProviderOpenAI
}
