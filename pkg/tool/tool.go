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

// Package tool defines the single contract every agent tool implements.
//
// A tool is a set of named actions. Each action decodes its own payload
// shape and returns one document:
//
//	actions := tool.Actions{
//	    "recall":   tool.Action(t.recall),
//	    "remember": tool.Action(t.remember),
//	}
//	doc, err := actions.Dispatch(ctx, "memory", call)
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
)

// Call is one action invocation. ConversationUUID is injected by the agent.
type Call struct {
	Action           string          `json:"action"`
	Payload          json.RawMessage `json:"payload"`
	ConversationUUID string          `json:"conversation_uuid,omitempty"`
}

// Tool is anything the agent can dispatch an action to.
type Tool interface {
	// Name is unique within a registry and is what the planner refers to.
	Name() string

	// Description tells the planner when the tool is useful.
	Description() string

	// Instruction lists the actions and their payload shapes. It is shown
	// when the payload for an action is being written.
	Instruction() string

	Execute(ctx context.Context, call Call) (*document.Document, error)
}

// Contextual tools provide extra context while a payload is being written,
// for example the memory categories already used in the conversation.
type Contextual interface {
	Tool
	Context(ctx context.Context, conversationUUID string) (*document.Document, error)
}

// Validator is implemented by payloads that check themselves after
// decoding.
type Validator interface {
	Validate() error
}

// Handler executes one action.
type Handler func(ctx context.Context, call Call) (*document.Document, error)

// Action adapts a typed handler. The payload is decoded strictly into P and
// validated before fn runs.
func Action[P any](fn func(ctx context.Context, call Call, payload P) (*document.Document, error)) Handler {
	return func(ctx context.Context, call Call) (*document.Document, error) {
		p, err := Decode[P](call.Payload)
		if err != nil {
			return nil, err
		}
		return fn(ctx, call, p)
	}
}

// Decode reads payload into P, rejecting unknown fields.
func Decode[P any](payload json.RawMessage) (P, error) {
	var p P
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, errs.NewValidationError("payload", "malformed payload", err)
	}
	if v, ok := any(&p).(Validator); ok {
		if err := v.Validate(); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Actions maps action names to handlers.
type Actions map[string]Handler

// Dispatch runs the handler for call.Action.
func (a Actions) Dispatch(ctx context.Context, tool string, call Call) (*document.Document, error) {
	h, ok := a[call.Action]
	if !ok {
		return nil, errs.NewValidationError("action",
			fmt.Sprintf("unknown action %q for tool %s, expected one of: %s", call.Action, tool, strings.Join(a.Names(), ", ")), nil)
	}
	return h(ctx, call)
}

// Names returns the action names, sorted.
func (a Actions) Names() []string {
	names := make([]string, 0, len(a))
	for n := range a {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
