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

// Package task maintains the plan of a conversation: tasks proposed by the
// planner and the tool actions executed for them.
//
// Completed tasks and actions are write-once. Every plan ends with exactly
// one pending final task, and an action completes together with its result
// document in a single transaction.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/store"
)

// FinalAnswer names both the final task and the tool that ends the loop.
const FinalAnswer = "final_answer"

// SourceActionResult labels documents produced by tool actions.
const SourceActionResult = "action_result"

// Draft is a task proposed by the planner. A nil or empty UUID asks for a
// new task.
type Draft struct {
	UUID        *string `json:"uuid"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}

// NewAction describes an action to create.
type NewAction struct {
	TaskUUID string
	Tool     string
	Name     string
	Sequence int
	Payload  json.RawMessage
}

// Service is the task/action graph.
type Service struct {
	store *store.Store
}

func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// FindByConversation returns the plan of a conversation with actions and
// their documents.
func (s *Service) FindByConversation(ctx context.Context, conversationUUID string) ([]*store.Task, error) {
	if conversationUUID == "" {
		return nil, errs.NewValidationError("conversation_uuid", "is required", nil)
	}
	return s.store.ListTasks(ctx, conversationUUID)
}

// CreateOrUpdate applies the planner's drafts. New drafts are appended,
// drafts for pending tasks rewrite them and drafts for completed tasks are
// skipped. The resulting plan always ends with one pending final task.
func (s *Service) CreateOrUpdate(ctx context.Context, conversationUUID string, drafts []Draft) ([]*store.Task, error) {
	if conversationUUID == "" {
		return nil, errs.NewValidationError("conversation_uuid", "is required", nil)
	}
	for i, d := range drafts {
		if strings.TrimSpace(d.Name) == "" {
			return nil, errs.NewValidationError(fmt.Sprintf("tasks[%d].name", i), "is required", nil)
		}
	}

	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		final, err := pendingFinal(ctx, tx, conversationUUID)
		if err != nil {
			return err
		}

		for _, d := range drafts {
			if d.UUID != nil && *d.UUID != "" {
				if err := updateDraft(ctx, tx, *d.UUID, d); err != nil {
					return err
				}
				continue
			}
			if d.Name == FinalAnswer && final != nil {
				if _, err := tx.UpdatePendingTask(ctx, final.UUID, d.Name, d.Description); err != nil {
					return err
				}
				continue
			}
			t, err := insertTask(ctx, tx, conversationUUID, d.Name, d.Description)
			if err != nil {
				return err
			}
			if t.Kind == store.TaskFinal {
				final = t
			}
		}

		if final == nil {
			if final, err = insertTask(ctx, tx, conversationUUID, FinalAnswer,
				"Answer the user using everything gathered so far"); err != nil {
				return err
			}
		}
		return moveLast(ctx, tx, conversationUUID, final)
	})
	if err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, conversationUUID)
}

func updateDraft(ctx context.Context, tx *store.Store, id string, d Draft) error {
	current, err := tx.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == store.TaskCompleted {
		slog.Debug("Skipping update of completed task", "task_uuid", id, "name", current.Name)
		return nil
	}
	_, err = tx.UpdatePendingTask(ctx, id, d.Name, d.Description)
	return err
}

func insertTask(ctx context.Context, tx *store.Store, conversationUUID, name, description string) (*store.Task, error) {
	pos, err := tx.MaxTaskPosition(ctx, conversationUUID)
	if err != nil {
		return nil, err
	}
	kind := store.TaskRegular
	if name == FinalAnswer {
		kind = store.TaskFinal
	}
	ts := timeNow()
	t := &store.Task{
		UUID:             uuid.NewString(),
		ConversationUUID: conversationUUID,
		Name:             name,
		Kind:             kind,
		Status:           store.TaskPending,
		Description:      description,
		Position:         pos + 1,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}
	return t, tx.InsertTask(ctx, t)
}

func pendingFinal(ctx context.Context, tx *store.Store, conversationUUID string) (*store.Task, error) {
	tasks, err := tx.ListTasks(ctx, conversationUUID)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Kind == store.TaskFinal && t.Status == store.TaskPending {
			return t, nil
		}
	}
	return nil, nil
}

// moveLast keeps the final task behind every other task. Positions are
// unique because inserts always take max+1.
func moveLast(ctx context.Context, tx *store.Store, conversationUUID string, final *store.Task) error {
	pos, err := tx.MaxTaskPosition(ctx, conversationUUID)
	if err != nil {
		return err
	}
	current, err := tx.GetTask(ctx, final.UUID)
	if err != nil {
		return err
	}
	if current.Position == pos {
		return nil
	}
	return tx.SetTaskPosition(ctx, final.UUID, pos+1)
}

// CreateAction inserts a pending action for a task.
func (s *Service) CreateAction(ctx context.Context, a NewAction) (*store.Action, error) {
	if a.Tool == "" {
		return nil, errs.NewValidationError("tool", "is required", nil)
	}
	if a.Name == "" {
		return nil, errs.NewValidationError("name", "is required", nil)
	}
	if len(a.Payload) > 0 && !json.Valid(a.Payload) {
		return nil, errs.NewValidationError("payload", "must be valid JSON", nil)
	}
	if _, err := s.store.GetTask(ctx, a.TaskUUID); err != nil {
		return nil, err
	}

	ts := timeNow()
	action := &store.Action{
		UUID:      uuid.NewString(),
		TaskUUID:  a.TaskUUID,
		Tool:      a.Tool,
		Name:      a.Name,
		Sequence:  a.Sequence,
		Status:    store.ActionPending,
		Payload:   a.Payload,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.store.InsertAction(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

// UpdateActionPayload stores the generated tool arguments of an action.
func (s *Service) UpdateActionPayload(ctx context.Context, actionUUID string, payload json.RawMessage) error {
	if !json.Valid(payload) {
		return errs.NewValidationError("payload", "must be valid JSON", nil)
	}
	return s.store.UpdateActionPayload(ctx, actionUUID, payload)
}

// UpdateActionWithResult is the only way an action completes. It formats
// result, stores it as a document linked to the action, marks the action
// completed and completes the parent task once all of its actions are done.
// Either all of it is written or none of it.
func (s *Service) UpdateActionWithResult(ctx context.Context, actionUUID string, result any) (*store.Action, error) {
	var completed *store.Action
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		action, err := tx.GetAction(ctx, actionUUID)
		if err != nil {
			return err
		}
		if action.Status != store.ActionPending {
			return errs.NewValidationError("action", fmt.Sprintf("%s is already %s", actionUUID, action.Status), nil)
		}
		parent, err := tx.GetTask(ctx, action.TaskUUID)
		if err != nil {
			return err
		}

		doc := resultDocument(result, action, parent)
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}
		if _, err := tx.CompleteAction(ctx, action.UUID, store.ActionCompleted, doc.Text); err != nil {
			return err
		}
		if err := tx.LinkActionDocument(ctx, action.UUID, doc.UUID); err != nil {
			return err
		}

		total, done, err := tx.CountActions(ctx, parent.UUID)
		if err != nil {
			return err
		}
		if total > 0 && done == total {
			if err := tx.CompleteTask(ctx, parent.UUID, doc.Text); err != nil {
				return err
			}
		}

		completed, err = tx.GetActionWithDocuments(ctx, action.UUID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// CompleteTask marks a task completed regardless of its actions.
func (s *Service) CompleteTask(ctx context.Context, taskUUID, result string) error {
	if _, err := s.store.GetTask(ctx, taskUUID); err != nil {
		return err
	}
	return s.store.CompleteTask(ctx, taskUUID, result)
}

func resultDocument(result any, action *store.Action, parent *store.Task) *document.Document {
	meta := document.Metadata{
		Type:        document.ContentText,
		Variant:     document.FullMetadata{},
		Name:        action.Tool + "." + action.Name,
		Description: "Result of " + action.Name + " for task " + parent.Name,
		Source:      SourceActionResult,
	}
	if src, ok := result.(*document.Document); ok && src != nil {
		meta = src.Metadata.Clone()
		if meta.Source == "" {
			meta.Source = SourceActionResult
		}
		if meta.Name == "" {
			meta.Name = action.Tool + "." + action.Name
		}
		if meta.Variant == nil {
			meta.Variant = document.FullMetadata{}
		}
	}

	doc := document.New(FormatResult(result), meta)
	doc.SourceUUID = parent.UUID
	doc.ConversationUUID = parent.ConversationUUID
	return doc
}
