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

	"github.com/google/uuid"
	"github.com/wojcikm/alice/pkg/errs"
)

// GetConversation loads a conversation by UUID.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := s.queryRow(ctx,
		`SELECT uuid, user_uuid, name, created_at, updated_at FROM conversations WHERE uuid = ?`, id).
		Scan(&c.UUID, &c.UserUUID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewNotFoundError("conversation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

// GetOrCreateConversation returns the conversation with the given UUID,
// creating it when missing. An empty id creates a new conversation.
func (s *Store) GetOrCreateConversation(ctx context.Context, id, userUUID, name string) (*Conversation, error) {
	if id != "" {
		c, err := s.GetConversation(ctx, id)
		if err == nil {
			return c, nil
		}
		if !errs.IsNotFound(err) {
			return nil, err
		}
	} else {
		id = uuid.NewString()
	}

	ts := now()
	c := &Conversation{UUID: id, UserUUID: userUUID, Name: name, CreatedAt: ts, UpdatedAt: ts}
	if _, err := s.exec(ctx,
		`INSERT INTO conversations (uuid, user_uuid, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.UUID, c.UserUUID, c.Name, c.CreatedAt, c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return c, nil
}

// AddMessage appends a message to a conversation.
func (s *Store) AddMessage(ctx context.Context, conversationUUID, role, content string) (*Message, error) {
	m := &Message{
		UUID:             uuid.NewString(),
		ConversationUUID: conversationUUID,
		Role:             role,
		Content:          content,
		CreatedAt:        now(),
	}
	err := s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.exec(ctx,
			`INSERT INTO messages (uuid, conversation_uuid, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			m.UUID, m.ConversationUUID, m.Role, m.Content, m.CreatedAt); err != nil {
			return err
		}
		_, err := tx.exec(ctx, `UPDATE conversations SET updated_at = ? WHERE uuid = ?`, m.CreatedAt, conversationUUID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}
	return m, nil
}

// ListMessages returns the messages of a conversation in insertion order.
// A positive limit keeps only the most recent messages.
func (s *Store) ListMessages(ctx context.Context, conversationUUID string, limit int) ([]*Message, error) {
	rows, err := s.query(ctx,
		`SELECT uuid, conversation_uuid, role, content, created_at FROM messages
         WHERE conversation_uuid = ? ORDER BY created_at, uuid`, conversationUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.UUID, &m.ConversationUUID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
