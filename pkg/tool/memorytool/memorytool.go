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

// Package memorytool exposes the memory subsystem to the agent.
package memorytool

import (
	"context"
	"fmt"
	"strings"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/memory"
	"github.com/wojcikm/alice/pkg/store"
	"github.com/wojcikm/alice/pkg/tool"
)

const Name = "memory"

// Memories is the part of memory.Service the tool needs.
type Memories interface {
	Recall(ctx context.Context, req memory.RecallRequest) (*memory.Recollection, error)
	Remember(ctx context.Context, req memory.RememberRequest) (*store.MemoryRecord, error)
	Update(ctx context.Context, req memory.UpdateRequest) (*store.MemoryRecord, error)
	Forget(ctx context.Context, memoryUUID string) (*store.MemoryRecord, error)
	RecentContext(ctx context.Context, conversationUUID string) (*document.Document, error)
}

// Tool implements tool.Contextual over a Memories service.
type Tool struct {
	memories Memories
	aiName   string
	actions  tool.Actions
}

func New(memories Memories, aiName string) *Tool {
	t := &Tool{memories: memories, aiName: aiName}
	t.actions = tool.Actions{
		"recall":   tool.Action(t.recall),
		"remember": tool.Action(t.remember),
		"update":   tool.Action(t.update),
		"forget":   tool.Action(t.forget),
	}
	return t
}

func (t *Tool) Name() string { return Name }

func (t *Tool) Description() string {
	return "Long-term memory about the user, the assistant and the world: recall, remember, update or forget named memories."
}

func (t *Tool) Instruction() string {
	return strings.Join([]string{
		`Action "recall" with payload {"query": string, "limit": number 1-100, default 15}: search memories.`,
		`Action "remember" with payload {"name": string, "text": string, "category": string, "subcategory": string}: store a new memory. category and subcategory must be one of the known pairs.`,
		`Action "update" with payload {"memory_uuid": string, "name"?: string, "text"?: string, "category"?: string, "subcategory"?: string}: change a memory.`,
		`Action "forget" with payload {"memory_uuid": string}: delete a memory.`,
	}, "\n")
}

func (t *Tool) Execute(ctx context.Context, call tool.Call) (*document.Document, error) {
	return t.actions.Dispatch(ctx, Name, call)
}

// Context lists the memory categories used in the conversation so far.
func (t *Tool) Context(ctx context.Context, conversationUUID string) (*document.Document, error) {
	return t.memories.RecentContext(ctx, conversationUUID)
}

type recallPayload struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (p *recallPayload) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return errs.NewValidationError("query", "is required", nil)
	}
	if p.Limit == 0 {
		p.Limit = memory.DefaultRecallLimit
	}
	if p.Limit < 1 || p.Limit > memory.MaxRecallLimit {
		return errs.NewValidationError("limit", fmt.Sprintf("must be within 1..%d", memory.MaxRecallLimit), nil)
	}
	return nil
}

func (t *Tool) recall(ctx context.Context, call tool.Call, p recallPayload) (*document.Document, error) {
	rec, err := t.memories.Recall(ctx, memory.RecallRequest{
		Query:            p.Query,
		Limit:            p.Limit,
		ConversationUUID: call.ConversationUUID,
		AIName:           t.aiName,
	})
	if err != nil {
		return nil, err
	}
	return rec.Document, nil
}

type rememberPayload struct {
	Name        string `json:"name"`
	Text        string `json:"text"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

func (p *rememberPayload) Validate() error {
	fields := []struct{ name, value string }{
		{"name", p.Name},
		{"text", p.Text},
		{"category", p.Category},
		{"subcategory", p.Subcategory},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return errs.NewValidationError(f.name, "is required", nil)
		}
	}
	return nil
}

func (t *Tool) remember(ctx context.Context, call tool.Call, p rememberPayload) (*document.Document, error) {
	rec, err := t.memories.Remember(ctx, memory.RememberRequest{
		Name:             p.Name,
		Text:             p.Text,
		Category:         p.Category,
		Subcategory:      p.Subcategory,
		ConversationUUID: call.ConversationUUID,
	})
	if err != nil {
		return nil, err
	}
	return result(memory.Render(rec), "memory_stored"), nil
}

type updatePayload struct {
	MemoryUUID  string `json:"memory_uuid"`
	Name        string `json:"name,omitempty"`
	Text        string `json:"text,omitempty"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
}

func (p *updatePayload) Validate() error {
	if p.MemoryUUID == "" {
		return errs.NewValidationError("memory_uuid", "is required", nil)
	}
	return nil
}

func (t *Tool) update(ctx context.Context, _ tool.Call, p updatePayload) (*document.Document, error) {
	rec, err := t.memories.Update(ctx, memory.UpdateRequest{
		MemoryUUID:  p.MemoryUUID,
		Name:        p.Name,
		Text:        p.Text,
		Category:    p.Category,
		Subcategory: p.Subcategory,
	})
	if err != nil {
		return nil, err
	}
	return result("Successfully updated memory: "+rec.Name, "memory_updated"), nil
}

type forgetPayload struct {
	MemoryUUID string `json:"memory_uuid"`
}

func (p *forgetPayload) Validate() error {
	if p.MemoryUUID == "" {
		return errs.NewValidationError("memory_uuid", "is required", nil)
	}
	return nil
}

func (t *Tool) forget(ctx context.Context, _ tool.Call, p forgetPayload) (*document.Document, error) {
	rec, err := t.memories.Forget(ctx, p.MemoryUUID)
	if err != nil {
		return nil, err
	}
	return result("Successfully deleted memory: "+rec.Name, "memory_deleted"), nil
}

func result(text, name string) *document.Document {
	return document.New(text, document.Metadata{
		Type:    document.ContentText,
		Variant: document.FullMetadata{},
		Name:    name,
		Source:  document.SourceMemoryService,
	})
}

var _ tool.Contextual = (*Tool)(nil)
