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

// Package index keeps documents searchable. A VectorIndex embeds documents
// into a vector.Provider and a KeywordIndex answers lexical queries; the
// Indexer writes to and deletes from both.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/search"
)

// KeywordIndex is a lexical index over documents. Filters apply before
// ranking.
type KeywordIndex interface {
	Index(ctx context.Context, doc *document.Document) error
	Search(ctx context.Context, query string, filters search.Filters, limit int) ([]search.Hit, error)
	Delete(ctx context.Context, documentUUID string) error
	Name() string
}

// Payload flattens the filterable fields of a document.
func Payload(doc *document.Document) map[string]string {
	p := map[string]string{
		search.KeyDocumentUUID: doc.UUID,
		search.KeySourceUUID:   doc.SourceUUID,
		search.KeyRole:         string(doc.Role()),
	}
	if doc.Metadata.Type != "" {
		p[search.KeyContentType] = string(doc.Metadata.Type)
	}
	if doc.Metadata.Source != "" {
		p[search.KeySource] = doc.Metadata.Source
	}
	if doc.ConversationUUID != "" {
		p[search.KeyConversationUUID] = doc.ConversationUUID
	}
	if m, ok := doc.Metadata.Memory(); ok {
		p[search.KeyCategory] = m.Category
		p[search.KeySubcategory] = m.Subcategory
	}
	return p
}

// Indexer fans document writes out to the vector and keyword indices.
type Indexer struct {
	vector  *VectorIndex
	keyword KeywordIndex
}

func NewIndexer(vector *VectorIndex, keyword KeywordIndex) *Indexer {
	return &Indexer{vector: vector, keyword: keyword}
}

// IndexDocument adds doc to both indices when its metadata asks for it.
// It reports whether the document was indexed.
func (i *Indexer) IndexDocument(ctx context.Context, doc *document.Document) (bool, error) {
	if !doc.Metadata.ShouldIndex {
		return false, nil
	}
	if err := i.vector.Index(ctx, doc); err != nil {
		return false, fmt.Errorf("vector index: %w", err)
	}
	if err := i.keyword.Index(ctx, doc); err != nil {
		return false, fmt.Errorf("keyword index %s: %w", i.keyword.Name(), err)
	}
	slog.Debug("Indexed document", "document_uuid", doc.UUID, "role", doc.Role())
	return true, nil
}

// DeleteDocument removes a document from both indices. Both deletes are
// attempted even when one fails.
func (i *Indexer) DeleteDocument(ctx context.Context, documentUUID string) error {
	return errors.Join(
		i.vector.Delete(ctx, documentUUID),
		i.keyword.Delete(ctx, documentUUID),
	)
}

// Fuser returns a hybrid searcher over both indices.
func (i *Indexer) Fuser() *search.Fuser {
	return search.NewFuser(i.vector, i.keyword)
}
