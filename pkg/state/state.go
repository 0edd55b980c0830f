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

// Package state holds the snapshot of one in-flight conversation turn.
//
// A Manager owns a single immutable JSON tree. Every update produces a new
// tree with WithPath, decodes and validates the whole result and only then
// swaps it in. Readers get decoded copies and can never alter the snapshot.
package state

import (
	"fmt"
	"strings"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/llm"
	"github.com/wojcikm/alice/pkg/store"
)

// Top level paths.
const (
	PathConfig      = "config"
	PathThoughts    = "thoughts"
	PathProfile     = "profile"
	PathInteraction = "interaction"
	PathSession     = "session"
)

const DefaultMaxSteps = 10

// State is the whole turn snapshot.
type State struct {
	Config      Config      `json:"config"`
	Thoughts    Thoughts    `json:"thoughts"`
	Profile     Profile     `json:"profile"`
	Interaction Interaction `json:"interaction"`
	Session     Session     `json:"session"`
}

// Config carries loop control: the step counter and the current pointers.
type Config struct {
	ConversationUUID string  `json:"conversation_uuid"`
	Step             int     `json:"step"`
	MaxSteps         int     `json:"max_steps"`
	CurrentTask      string  `json:"current_task,omitempty"`
	CurrentAction    string  `json:"current_action,omitempty"`
	CurrentTool      string  `json:"current_tool,omitempty"`
	Model            string  `json:"model"`
	AltModel         string  `json:"alt_model,omitempty"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	FastTrack        bool    `json:"fast_track"`
}

// ToolQuery is a drafted question for one tool.
type ToolQuery struct {
	Tool  string `json:"tool"`
	Query string `json:"query"`
}

// MemoryQuery is a drafted question against one memory category.
type MemoryQuery struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Query       string `json:"query"`
}

type Thoughts struct {
	Environment string        `json:"environment"`
	Context     string        `json:"context"`
	Tools       []ToolQuery   `json:"tools"`
	Memory      []MemoryQuery `json:"memory"`
}

type Profile struct {
	AIName      string            `json:"ai_name"`
	UserUUID    string            `json:"user_uuid"`
	UserName    string            `json:"user_name"`
	Context     string            `json:"context"`
	Environment map[string]string `json:"environment"`
}

type Interaction struct {
	Tasks       []*store.Task        `json:"tasks"`
	Messages    []llm.Message        `json:"messages"`
	ToolContext []*document.Document `json:"tool_context"`
}

// ToolInfo describes a tool loaded for the turn.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
}

type Session struct {
	Tools      []ToolInfo            `json:"tools"`
	Categories []store.Category      `json:"categories"`
	Memories   []*store.MemoryRecord `json:"memories"`
}

// New returns a snapshot with default loop settings.
func New(conversationUUID string) State {
	return State{
		Config: Config{
			ConversationUUID: conversationUUID,
			MaxSteps:         DefaultMaxSteps,
		},
		Profile: Profile{Environment: map[string]string{}},
	}
}

// Task returns the task with the given UUID from the plan.
func (s State) Task(uuid string) *store.Task {
	for _, t := range s.Interaction.Tasks {
		if t.UUID == uuid {
			return t
		}
	}
	return nil
}

// Tool returns the loaded tool called name.
func (s State) Tool(name string) (ToolInfo, bool) {
	for _, t := range s.Session.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolInfo{}, false
}

// Validate checks the invariants that hold across sections.
func (s State) Validate() error {
	c := s.Config
	if c.MaxSteps < 1 {
		return errs.NewValidationError("config.max_steps", "must be at least 1", nil)
	}
	if c.Step < 0 || c.Step > c.MaxSteps {
		return errs.NewValidationError("config.step", fmt.Sprintf("must be within 0..%d", c.MaxSteps), nil)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errs.NewValidationError("config.temperature", "must be within 0..2", nil)
	}
	if c.MaxTokens < 0 {
		return errs.NewValidationError("config.max_tokens", "must not be negative", nil)
	}

	pendingFinals := 0
	tasks := s.Interaction.Tasks
	for i, t := range tasks {
		field := fmt.Sprintf("interaction.tasks.%d", i)
		if t == nil || t.UUID == "" {
			return errs.NewValidationError(field, "task uuid is required", nil)
		}
		switch t.Kind {
		case store.TaskRegular:
		case store.TaskFinal:
			if t.Status == store.TaskPending {
				pendingFinals++
			}
		default:
			return errs.NewValidationError(field+".kind", fmt.Sprintf("unknown kind %q", t.Kind), nil)
		}
		if t.Status != store.TaskPending && t.Status != store.TaskCompleted {
			return errs.NewValidationError(field+".status", fmt.Sprintf("unknown status %q", t.Status), nil)
		}
	}
	// Earlier turns leave completed final tasks behind. Only the last task
	// may be a pending final one.
	if len(tasks) > 0 && tasks[len(tasks)-1].Kind != store.TaskFinal {
		return errs.NewValidationError("interaction.tasks", "plan must end with a final task", nil)
	}
	if pendingFinals > 1 {
		return errs.NewValidationError("interaction.tasks", "plan has more than one pending final task", nil)
	}
	if c.CurrentTask != "" && s.Task(c.CurrentTask) == nil {
		return errs.NewValidationError("config.current_task", "task is not part of the plan", nil)
	}

	for i, m := range s.Interaction.Messages {
		switch m.Role {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant:
		default:
			return errs.NewValidationError(fmt.Sprintf("interaction.messages.%d.role", i),
				fmt.Sprintf("unknown role %q", m.Role), nil)
		}
	}
	for i, q := range s.Thoughts.Memory {
		if strings.TrimSpace(q.Category) == "" {
			return errs.NewValidationError(fmt.Sprintf("thoughts.memory.%d.category", i), "is required", nil)
		}
	}
	for i, d := range s.Interaction.ToolContext {
		if d == nil {
			return errs.NewValidationError(fmt.Sprintf("interaction.tool_context.%d", i), "document is nil", nil)
		}
		if err := d.Validate(); err != nil {
			return errs.NewValidationError(fmt.Sprintf("interaction.tool_context.%d", i), "invalid document", err)
		}
	}
	return nil
}

// InvalidStateError rejects an update. Diff lists what the rejected
// snapshot would have changed.
type InvalidStateError struct {
	Path string
	Diff []Change
	Err  error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state after update at %q: %v", e.Path, e.Err)
}

func (e *InvalidStateError) Unwrap() error {
	return e.Err
}
