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
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
)

const taskColumns = `uuid, conversation_uuid, name, kind, status, description, result, position, created_at, updated_at`

const actionColumns = `uuid, task_uuid, tool, name, sequence, status, payload, result, created_at, updated_at`

func scanTask(r rowScanner) (*Task, error) {
	var t Task
	err := r.Scan(&t.UUID, &t.ConversationUUID, &t.Name, &t.Kind, &t.Status, &t.Description,
		&t.Result, &t.Position, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanAction(r rowScanner) (*Action, error) {
	var (
		a       Action
		payload string
	)
	err := r.Scan(&a.UUID, &a.TaskUUID, &a.Tool, &a.Name, &a.Sequence, &a.Status, &payload,
		&a.Result, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if payload != "" {
		a.Payload = []byte(payload)
	}
	return &a, nil
}

// InsertTask stores a new task.
func (s *Store) InsertTask(ctx context.Context, t *Task) error {
	if _, err := s.exec(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UUID, t.ConversationUUID, t.Name, t.Kind, t.Status, t.Description, t.Result, t.Position,
		t.CreatedAt, t.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// UpdatePendingTask rewrites name and description of a task that is still
// pending. It reports whether a row changed.
func (s *Store) UpdatePendingTask(ctx context.Context, id, name, description string) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE tasks SET name = ?, description = ?, updated_at = ? WHERE uuid = ? AND status = ?`,
		name, description, now(), id, TaskPending)
	if err != nil {
		return false, fmt.Errorf("failed to update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetTask loads a task without its actions.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE uuid = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewNotFoundError("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListTasks returns the tasks of a conversation ordered by position, each
// with its actions and their documents.
func (s *Store) ListTasks(ctx context.Context, conversationUUID string) ([]*Task, error) {
	rows, err := s.query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE conversation_uuid = ? ORDER BY position, created_at, uuid`,
		conversationUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, t := range tasks {
		if t.Actions, err = s.ListActions(ctx, t.UUID); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// MaxTaskPosition returns the highest position used in a conversation, or
// -1 when it has no tasks.
func (s *Store) MaxTaskPosition(ctx context.Context, conversationUUID string) (int, error) {
	var pos sql.NullInt64
	if err := s.queryRow(ctx, `SELECT MAX(position) FROM tasks WHERE conversation_uuid = ?`,
		conversationUUID).Scan(&pos); err != nil {
		return 0, fmt.Errorf("failed to read task position: %w", err)
	}
	if !pos.Valid {
		return -1, nil
	}
	return int(pos.Int64), nil
}

func (s *Store) SetTaskPosition(ctx context.Context, id string, position int) error {
	if _, err := s.exec(ctx, `UPDATE tasks SET position = ? WHERE uuid = ?`, position, id); err != nil {
		return fmt.Errorf("failed to move task: %w", err)
	}
	return nil
}

// CompleteTask marks a pending task completed and stores its result.
// Completing a task twice is a no-op.
func (s *Store) CompleteTask(ctx context.Context, id, result string) error {
	if _, err := s.exec(ctx,
		`UPDATE tasks SET status = ?, result = ?, updated_at = ? WHERE uuid = ? AND status = ?`,
		TaskCompleted, result, now(), id, TaskPending); err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return nil
}

// InsertAction stores a new action.
func (s *Store) InsertAction(ctx context.Context, a *Action) error {
	if _, err := s.exec(ctx, `INSERT INTO actions (`+actionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UUID, a.TaskUUID, a.Tool, a.Name, a.Sequence, a.Status, string(a.Payload), a.Result,
		a.CreatedAt, a.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	return nil
}

// GetAction loads an action without its documents.
func (s *Store) GetAction(ctx context.Context, id string) (*Action, error) {
	a, err := scanAction(s.queryRow(ctx, `SELECT `+actionColumns+` FROM actions WHERE uuid = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewNotFoundError("action", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	return a, nil
}

// GetActionWithDocuments loads an action and the documents linked to it.
func (s *Store) GetActionWithDocuments(ctx context.Context, id string) (*Action, error) {
	a, err := s.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Documents, err = s.actionDocuments(ctx, a.UUID); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateActionPayload replaces the payload of an action.
func (s *Store) UpdateActionPayload(ctx context.Context, id string, payload []byte) error {
	res, err := s.exec(ctx, `UPDATE actions SET payload = ?, updated_at = ? WHERE uuid = ?`,
		string(payload), now(), id)
	if err != nil {
		return fmt.Errorf("failed to update action payload: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NewNotFoundError("action", id)
	}
	return nil
}

// CompleteAction moves a pending action to status and stores its result.
// It reports whether the action was pending.
func (s *Store) CompleteAction(ctx context.Context, id string, status ActionStatus, result string) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE actions SET status = ?, result = ?, updated_at = ? WHERE uuid = ? AND status = ?`,
		status, result, now(), id, ActionPending)
	if err != nil {
		return false, fmt.Errorf("failed to complete action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LinkActionDocument attaches a document to an action.
func (s *Store) LinkActionDocument(ctx context.Context, actionUUID, documentUUID string) error {
	if _, err := s.exec(ctx, `INSERT INTO action_documents (action_uuid, document_uuid) VALUES (?, ?)`,
		actionUUID, documentUUID); err != nil {
		return fmt.Errorf("failed to link action document: %w", err)
	}
	return nil
}

// ListActions returns the actions of a task in sequence order.
func (s *Store) ListActions(ctx context.Context, taskUUID string) ([]*Action, error) {
	rows, err := s.query(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE task_uuid = ? ORDER BY sequence, created_at, uuid`, taskUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}

	var actions []*Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, a := range actions {
		if a.Documents, err = s.actionDocuments(ctx, a.UUID); err != nil {
			return nil, err
		}
	}
	return actions, nil
}

// CountActions returns how many actions a task has and how many of them are
// no longer pending.
func (s *Store) CountActions(ctx context.Context, taskUUID string) (total, done int, err error) {
	var finished sql.NullInt64
	err = s.queryRow(ctx, `SELECT COUNT(*), SUM(CASE WHEN status <> ? THEN 1 ELSE 0 END)
        FROM actions WHERE task_uuid = ?`, ActionPending, taskUUID).Scan(&total, &finished)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count actions: %w", err)
	}
	return total, int(finished.Int64), nil
}

func (s *Store) actionDocuments(ctx context.Context, actionUUID string) ([]*document.Document, error) {
	rows, err := s.query(ctx, `SELECT document_uuid FROM action_documents WHERE action_uuid = ?`, actionUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list action documents: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	return s.GetDocuments(ctx, ids)
}
