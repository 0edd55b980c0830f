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
	"slices"
	"strings"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/index"
	"github.com/wojcikm/alice/pkg/search"
)

// KeywordIndex answers lexical queries from the documents table. A document
// takes part once it has been indexed.
type KeywordIndex struct {
	store *Store
}

var _ index.KeywordIndex = (*KeywordIndex)(nil)

func NewKeywordIndex(s *Store) *KeywordIndex {
	return &KeywordIndex{store: s}
}

func (k *KeywordIndex) Name() string { return "sql" }

// Index marks a stored document searchable.
func (k *KeywordIndex) Index(ctx context.Context, doc *document.Document) error {
	if _, err := k.store.GetDocument(ctx, doc.UUID); err != nil {
		return err
	}
	return k.store.SetIndexed(ctx, doc.UUID, true)
}

func (k *KeywordIndex) Delete(ctx context.Context, documentUUID string) error {
	return k.store.SetIndexed(ctx, documentUUID, false)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

var filterColumns = []struct {
	key, column string
}{
	{search.KeySourceUUID, "source_uuid"},
	{search.KeySource, "source"},
	{search.KeyRole, "role"},
	{search.KeyContentType, "content_type"},
	{search.KeyCategory, "category"},
	{search.KeySubcategory, "subcategory"},
}

// Search selects candidates containing any query term and ranks them by
// term overlap.
func (k *KeywordIndex) Search(ctx context.Context, query string, filters search.Filters, limit int) ([]search.Hit, error) {
	terms := index.Tokenize(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	where := []string{"indexed = 1"}
	var args []any
	fm := filters.Map()
	for _, fc := range filterColumns {
		if v, ok := fm[fc.key]; ok {
			where = append(where, fc.column+" = ?")
			args = append(args, v)
		}
	}
	likes := make([]string, 0, len(terms))
	for t := range terms {
		likes = append(likes, "LOWER(name) LIKE ? ESCAPE '!' OR LOWER(text) LIKE ? ESCAPE '!'")
		pattern := "%" + likeEscaper.Replace(t) + "%"
		args = append(args, pattern, pattern)
	}
	where = append(where, "("+strings.Join(likes, " OR ")+")")

	rows, err := k.store.query(ctx,
		`SELECT uuid, name, text FROM documents WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []search.Hit
	for rows.Next() {
		var id, name, text string
		if err := rows.Scan(&id, &name, &text); err != nil {
			return nil, err
		}
		score := index.Score(terms, index.Tokenize(name+" "+text))
		if score > 0 {
			hits = append(hits, search.Hit{DocumentUUID: id, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(hits, func(a, b search.Hit) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.DocumentUUID, b.DocumentUUID)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
