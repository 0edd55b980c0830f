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

// Package llm is the completion service used by the agent loop and the
// memory subsystem. Clients return errs.CompletionError on failure and never
// retry on their own beyond the transport's rate limit handling.
package llm

import (
	"context"
	"iter"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Request is one completion call. Name labels the call site ("plan",
// "memory.self_query") for tracing and for scripted replies. Zero values
// fall back to the client's defaults.
type Request struct {
	Name        string
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

// Client is a language model completion service.
type Client interface {
	// Text returns the full completion.
	Text(ctx context.Context, req Request) (string, error)

	// JSON returns a completion constrained to the given JSON schema.
	JSON(ctx context.Context, req Request, schema map[string]any) (string, error)

	// Stream yields text deltas as they arrive.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]

	// Model is the default model.
	Model() string
}

// Collect drains a stream into one string, calling onDelta for every delta.
func Collect(seq iter.Seq2[string, error], onDelta func(string)) (string, error) {
	var b strings.Builder
	for delta, err := range seq {
		if err != nil {
			return b.String(), err
		}
		if onDelta != nil {
			onDelta(delta)
		}
		b.WriteString(delta)
	}
	return b.String(), nil
}
