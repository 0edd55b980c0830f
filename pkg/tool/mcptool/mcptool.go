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

// Package mcptool exposes an MCP server as one agent tool. The server's
// tools become the tool's actions and their arguments are the payload.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/tool"
)

const (
	protocolVersion = "2024-11-05"
	sourceMCP       = "mcp"
)

// ClientVersion is reported to MCP servers during the handshake.
var ClientVersion = "dev"

type Tool struct {
	name        string
	description string

	mu     sync.Mutex
	client *client.Client
	tools  []mcp.Tool
}

// Connect launches the configured server over stdio and lists its tools.
func Connect(ctx context.Context, cfg config.MCPServerConfig) (*Tool, error) {
	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	c, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start MCP server %s: %w", cfg.Name, err)
	}
	t, err := New(ctx, cfg.Name, cfg.Description, c)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return t, nil
}

// New performs the MCP handshake on an existing client.
func New(ctx context.Context, name, description string, c *client.Client) (*Tool, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = protocolVersion
	initReq.Params.ClientInfo = mcp.Implementation{Name: "alice", Version: ClientVersion}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, fmt.Errorf("failed to initialize MCP server %s: %w", name, err)
	}

	list, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools of %s: %w", name, err)
	}

	slog.Info("Connected to MCP server", "name", name, "tools", len(list.Tools))
	return &Tool{name: name, description: description, client: c, tools: list.Tools}, nil
}

func (t *Tool) Name() string        { return t.name }
func (t *Tool) Description() string { return t.description }

// Instruction lists every server tool with its input schema.
func (t *Tool) Instruction() string {
	lines := make([]string, 0, len(t.tools))
	for _, mt := range t.tools {
		schema, err := json.Marshal(mt.InputSchema)
		if err != nil {
			schema = []byte("{}")
		}
		lines = append(lines, fmt.Sprintf("Action %q with payload %s: %s", mt.Name, schema, mt.Description))
	}
	return strings.Join(lines, "\n")
}

// Actions returns the server's tool names.
func (t *Tool) Actions() []string {
	names := make([]string, len(t.tools))
	for i, mt := range t.tools {
		names[i] = mt.Name
	}
	return names
}

func (t *Tool) Execute(ctx context.Context, call tool.Call) (*document.Document, error) {
	if !t.has(call.Action) {
		return nil, errs.NewValidationError("action",
			fmt.Sprintf("unknown action %q for tool %s, expected one of: %s", call.Action, t.name, strings.Join(t.Actions(), ", ")), nil)
	}
	args, err := tool.Decode[map[string]any](call.Payload)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	c := t.client
	t.mu.Unlock()
	if c == nil {
		return nil, fmt.Errorf("MCP server %s is closed", t.name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = call.Action
	req.Params.Arguments = args
	res, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("MCP call failed: %w", err)
	}

	text := contentText(res.Content)
	if res.IsError {
		if text == "" {
			text = "unknown error"
		}
		return nil, fmt.Errorf("%s", text)
	}

	return document.New(text, document.Metadata{
		Type:        document.ContentText,
		Variant:     document.FullMetadata{},
		Name:        t.name + "." + call.Action,
		Description: "Result of " + call.Action + " from " + t.name,
		Source:      sourceMCP,
	}), nil
}

func (t *Tool) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *Tool) has(action string) bool {
	for _, mt := range t.tools {
		if mt.Name == action {
			return true
		}
	}
	return false
}

func contentText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ tool.Tool = (*Tool)(nil)
