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

// ToolsConfig configures external tools.
type ToolsConfig struct {
	MCP []MCPServerConfig `yaml:"mcp,omitempty" json:"mcp,omitempty"`
}

// MCPServerConfig launches one MCP server over stdio. The server is exposed
// as a single tool named Name whose actions are the server's tools.
type MCPServerConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

func (c *ToolsConfig) SetDefaults() {
	for i := range c.MCP {
		if c.MCP[i].Description == "" {
			c.MCP[i].Description = "Tools provided by the " + c.MCP[i].Name + " MCP server"
		}
	}
}

// reservedTools are implemented in process and cannot be shadowed.
var reservedTools = map[string]bool{
	"memory":       true,
	"documents":    true,
	"final_answer": true,
}

func (c *ToolsConfig) Validate() error {
	seen := make(map[string]bool, len(c.MCP))
	for i, s := range c.MCP {
		if s.Name == "" {
			return fmt.Errorf("mcp[%d]: name is required", i)
		}
		if reservedTools[s.Name] {
			return fmt.Errorf("mcp[%d]: name %q is reserved", i, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("mcp[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.Command == "" {
			return fmt.Errorf("mcp[%d]: command is required", i)
		}
	}
	return nil
}
