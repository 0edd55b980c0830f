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

package store

import (
	"encoding/json"
	"time"

	"github.com/wojcikm/alice/pkg/document"
)

type Conversation struct {
	UUID      string    `json:"uuid"`
	UserUUID  string    `json:"user_uuid"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	UUID             string    `json:"uuid"`
	ConversationUUID string    `json:"conversation_uuid"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	CreatedAt        time.Time `json:"created_at"`
}

type Category struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Subcategory string `json:"subcategory"`
	Description string `json:"description"`
}

// Memory is a named pointer from a category to one memory document.
type Memory struct {
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	CategoryUUID string    `json:"category_uuid"`
	DocumentUUID string    `json:"document_uuid"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MemoryRecord is a memory joined with its category and document.
type MemoryRecord struct {
	Memory
	Category Category           `json:"category"`
	Document *document.Document `json:"document"`
}

type TaskKind string

const (
	TaskRegular TaskKind = "regular"
	TaskFinal   TaskKind = "final"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

type Task struct {
	UUID             string     `json:"uuid"`
	ConversationUUID string     `json:"conversation_uuid"`
	Name             string     `json:"name"`
	Kind             TaskKind   `json:"kind"`
	Status           TaskStatus `json:"status"`
	Description      string     `json:"description"`
	Result           string     `json:"result,omitempty"`
	Position         int        `json:"position"`
	Actions          []*Action  `json:"actions,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionCompleted ActionStatus = "completed"
	ActionFailed    ActionStatus = "failed"
)

// Action is one tool invocation inside a task.
type Action struct {
	UUID      string               `json:"uuid"`
	TaskUUID  string               `json:"task_uuid"`
	Tool      string               `json:"tool"`
	Name      string               `json:"name"`
	Sequence  int                  `json:"sequence"`
	Status    ActionStatus         `json:"status"`
	Payload   json.RawMessage      `json:"payload,omitempty"`
	Result    string               `json:"result,omitempty"`
	Documents []*document.Document `json:"documents,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}
