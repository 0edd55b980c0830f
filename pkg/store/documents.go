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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
)

const documentColumns = `uuid, source_uuid, conversation_uuid, text, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*document.Document, error) {
	var (
		d    document.Document
		meta string
	)
	if err := r.Scan(&d.UUID, &d.SourceUUID, &d.ConversationUUID, &d.Text, &meta, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata of document %s: %w", d.UUID, err)
	}
	return &d, nil
}

func documentColumnsFor(doc *document.Document) (category, subcategory, meta string, err error) {
	if m, ok := doc.Metadata.Memory(); ok {
		category, subcategory = m.Category, m.Subcategory
	}
	raw, err := json.Marshal(doc.Metadata)
	if err != nil {
		return "", "", "", fmt.Errorf("encode metadata: %w", err)
	}
	return category, subcategory, string(raw), nil
}

// InsertDocument stores a new document.
func (s *Store) InsertDocument(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return errs.NewValidationError("document", "invalid document", err)
	}
	category, subcategory, meta, err := documentColumnsFor(doc)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO documents
        (uuid, source_uuid, conversation_uuid, name, source, role, content_type, category, subcategory, text, metadata, indexed, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		doc.UUID, doc.SourceUUID, doc.ConversationUUID, doc.Metadata.Name, doc.Metadata.Source,
		string(doc.Role()), string(doc.Metadata.Type), category, subcategory, doc.Text, meta, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// UpdateDocument rewrites the text and metadata of an existing document.
func (s *Store) UpdateDocument(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return errs.NewValidationError("document", "invalid document", err)
	}
	category, subcategory, meta, err := documentColumnsFor(doc)
	if err != nil {
		return err
	}
	doc.UpdatedAt = now()
	res, err := s.exec(ctx, `UPDATE documents SET name = ?, source = ?, role = ?, content_type = ?,
        category = ?, subcategory = ?, text = ?, metadata = ?, updated_at = ? WHERE uuid = ?`,
		doc.Metadata.Name, doc.Metadata.Source, string(doc.Role()), string(doc.Metadata.Type), category, subcategory,
		doc.Text, meta, doc.UpdatedAt, doc.UUID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NewNotFoundError("document", doc.UUID)
	}
	return nil
}

// GetDocument loads one document.
func (s *Store) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	doc, err := scanDocument(s.queryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE uuid = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewNotFoundError("document", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// GetDocuments loads documents by UUID, preserving the order of ids and
// skipping unknown ones.
func (s *Store) GetDocuments(ctx context.Context, ids []string) ([]*document.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE uuid IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*document.Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		byID[doc.UUID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*document.Document, 0, len(byID))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// ListDocumentsBySource returns every document sharing a source UUID, such
// as the chunks of one file.
func (s *Store) ListDocumentsBySource(ctx context.Context, sourceUUID string) ([]*document.Document, error) {
	rows, err := s.query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE source_uuid = ? ORDER BY created_at, uuid`, sourceUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []*document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document row.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `DELETE FROM documents WHERE uuid = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// SetIndexed flags whether a document is part of the keyword index.
func (s *Store) SetIndexed(ctx context.Context, id string, indexed bool) error {
	v := 0
	if indexed {
		v = 1
	}
	if _, err := s.exec(ctx, `UPDATE documents SET indexed = ? WHERE uuid = ?`, v, id); err != nil {
		return fmt.Errorf("failed to flag document: %w", err)
	}
	return nil
}
