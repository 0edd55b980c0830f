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

import "fmt"

// AgentConfig holds the per-turn defaults of the reasoning loop.
type AgentConfig struct {
	// AIName is how the assistant refers to itself.
	AIName string `yaml:"ai_name,omitempty" json:"ai_name,omitempty" jsonschema:"default=Alice"`

	// MaxSteps bounds the plan/act loop.
	MaxSteps int `yaml:"max_steps,omitempty" json:"max_steps,omitempty" jsonschema:"minimum=1,default=10"`

	// FastTrack lets the agent answer directly when no tool or memory is needed.
	FastTrack bool `yaml:"fast_track,omitempty" json:"fast_track,omitempty"`

	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"minimum=0,maximum=2,default=0.7"`
	MaxTokens   int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"minimum=1,default=16384"`
}

func (c *AgentConfig) SetDefaults() {
	if c.AIName == "" {
		c.AIName = "Alice"
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = 10
	}
	if c.Temperature == nil {
		temp := 0.7
		c.Temperature = &temp
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 16384
	}
}

func (c *AgentConfig) Validate() error {
	if c.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be at least 1")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive")
	}
	return nil
}
