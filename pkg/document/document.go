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

// Package document defines the canonical text unit exchanged between the
// chunker, the indices, the memory service, tools and the agent loop.
package document

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source labels used across the runtime.
const (
	SourceSystem        = "system"
	SourceMemory        = "memory"
	SourceMemoryService = "memory_service"
	SourceAssistant     = "assistant"
	SourceFile          = "file"
)

// Document wraps text with structured metadata.
type Document struct {
	UUID             string    `json:"uuid"`
	SourceUUID       string    `json:"source_uuid"`
	ConversationUUID string    `json:"conversation_uuid,omitempty"`
	Text             string    `json:"text"`
	Metadata         Metadata  `json:"metadata"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// New creates a document with a fresh UUID. The source UUID defaults to the
// document's own UUID when the metadata does not point elsewhere.
func New(text string, meta Metadata) *Document {
	now := time.Now().UTC()
	id := uuid.NewString()
	return &Document{
		UUID:       id,
		SourceUUID: id,
		Text:       text,
		Metadata:   meta,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Role returns the content role carried by the metadata variant.
func (d *Document) Role() Role {
	return d.Metadata.Role()
}

// Validate checks the metadata invariants of the document.
func (d *Document) Validate() error {
	if d.UUID == "" {
		return fmt.Errorf("document uuid is required")
	}
	return d.Metadata.Validate()
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Metadata = d.Metadata.Clone()
	return &c
}

// NewErrorDocument renders a failure as a document so it can be attached to
// an action result and read back by the planner.
func NewErrorDocument(err error, context, conversationUUID string) *Document {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	doc := New(fmt.Sprintf("Error: %s\nContext: %s", msg, context), Metadata{
		Type:        ContentText,
		Variant:     FullMetadata{},
		Name:        "error_report",
		Description: "Error report for " + context,
		Source:      SourceSystem,
	})
	doc.ConversationUUID = conversationUUID
	if conversationUUID != "" {
		doc.SourceUUID = conversationUUID
	}
	return doc
}
