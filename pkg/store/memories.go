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
	"fmt"
	"strings"

	"github.com/wojcikm/alice/pkg/errs"
)

const memoryRecordQuery = `SELECT m.uuid, m.name, m.category_uuid, m.document_uuid, m.created_at, m.updated_at,
    c.uuid, c.name, c.subcategory, c.description
    FROM memories m JOIN categories c ON c.uuid = m.category_uuid`

// InsertMemory stores a memory row. The backing document must exist.
func (s *Store) InsertMemory(ctx context.Context, m *Memory) error {
	if _, err := s.exec(ctx, `INSERT INTO memories
        (uuid, name, category_uuid, document_uuid, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.UUID, m.Name, m.CategoryUUID, m.DocumentUUID, m.CreatedAt, m.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

// UpdateMemory rewrites the name and category of a memory.
func (s *Store) UpdateMemory(ctx context.Context, m *Memory) error {
	m.UpdatedAt = now()
	res, err := s.exec(ctx, `UPDATE memories SET name = ?, category_uuid = ?, updated_at = ? WHERE uuid = ?`,
		m.Name, m.CategoryUUID, m.UpdatedAt, m.UUID)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NewNotFoundError("memory", m.UUID)
	}
	return nil
}

// DeleteMemory removes a memory, its conversation links and its document.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		rec, err := tx.GetMemory(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.exec(ctx, `DELETE FROM conversation_memories WHERE memory_uuid = ?`, id); err != nil {
			return fmt.Errorf("failed to unlink memory: %w", err)
		}
		if _, err := tx.exec(ctx, `DELETE FROM memories WHERE uuid = ?`, id); err != nil {
			return fmt.Errorf("failed to delete memory: %w", err)
		}
		return tx.DeleteDocument(ctx, rec.DocumentUUID)
	})
}

// GetMemory loads a memory with its category and document.
func (s *Store) GetMemory(ctx context.Context, id string) (*MemoryRecord, error) {
	recs, err := s.memoryRecords(ctx, memoryRecordQuery+` WHERE m.uuid = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errs.NewNotFoundError("memory", id)
	}
	return recs[0], nil
}

// ListMemories returns memories, newest first. Empty category or
// subcategory match everything.
func (s *Store) ListMemories(ctx context.Context, category, subcategory string, limit int) ([]*MemoryRecord, error) {
	var (
		where []string
		args  []any
	)
	if category != "" {
		where = append(where, "c.name = ?")
		args = append(args, category)
	}
	if subcategory != "" {
		where = append(where, "c.subcategory = ?")
		args = append(args, subcategory)
	}
	q := memoryRecordQuery
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY m.updated_at DESC, m.uuid"
	recs, err := s.memoryRecords(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// MemoriesByDocuments maps document UUIDs back to their memories, in the
// order of documentUUIDs.
func (s *Store) MemoriesByDocuments(ctx context.Context, documentUUIDs []string) ([]*MemoryRecord, error) {
	if len(documentUUIDs) == 0 {
		return nil, nil
	}
	recs, err := s.memoryRecords(ctx,
		memoryRecordQuery+` WHERE m.document_uuid IN (`+placeholders(len(documentUUIDs))+`)`,
		stringArgs(documentUUIDs)...)
	if err != nil {
		return nil, err
	}
	byDoc := make(map[string]*MemoryRecord, len(recs))
	for _, r := range recs {
		byDoc[r.DocumentUUID] = r
	}
	out := make([]*MemoryRecord, 0, len(recs))
	for _, id := range documentUUIDs {
		if r, ok := byDoc[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// LinkConversationMemory records that a memory was used in a conversation.
// Linking twice is a no-op.
func (s *Store) LinkConversationMemory(ctx context.Context, conversationUUID, memoryUUID string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		var count int
		if err := tx.queryRow(ctx,
			`SELECT COUNT(*) FROM conversation_memories WHERE conversation_uuid = ? AND memory_uuid = ?`,
			conversationUUID, memoryUUID).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		_, err := tx.exec(ctx,
			`INSERT INTO conversation_memories (conversation_uuid, memory_uuid, created_at) VALUES (?, ?, ?)`,
			conversationUUID, memoryUUID, now())
		return err
	})
}

// ListConversationMemories returns the memories linked to a conversation.
func (s *Store) ListConversationMemories(ctx context.Context, conversationUUID string) ([]*MemoryRecord, error) {
	return s.memoryRecords(ctx, memoryRecordQuery+`
    JOIN conversation_memories cm ON cm.memory_uuid = m.uuid
    WHERE cm.conversation_uuid = ? ORDER BY cm.created_at, m.uuid`, conversationUUID)
}

func (s *Store) memoryRecords(ctx context.Context, query string, args ...any) ([]*MemoryRecord, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}

	var recs []*MemoryRecord
	for rows.Next() {
		var r MemoryRecord
		if err := rows.Scan(&r.UUID, &r.Name, &r.CategoryUUID, &r.DocumentUUID, &r.CreatedAt, &r.UpdatedAt,
			&r.Category.UUID, &r.Category.Name, &r.Category.Subcategory, &r.Category.Description); err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, &r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Documents are fetched after the cursor is closed; sqlite runs on a
	// single connection.
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.DocumentUUID
	}
	docs, err := s.GetDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(docs))
	for i, d := range docs {
		byID[d.UUID] = i
	}
	for _, r := range recs {
		if i, ok := byID[r.DocumentUUID]; ok {
			r.Document = docs[i]
		}
	}
	return recs, nil
}
