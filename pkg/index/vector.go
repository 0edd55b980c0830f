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

package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/embedder"
	"github.com/wojcikm/alice/pkg/search"
	"github.com/wojcikm/alice/pkg/vector"
)

// DefaultCollection holds every indexed document.
const DefaultCollection = "documents"

const payloadContent = "content"

// VectorIndex embeds documents and searches them by similarity.
type VectorIndex struct {
	provider   vector.Provider
	embedder   embedder.Embedder
	collection string
}

// NewVectorIndex wires a provider to an embedder.
func NewVectorIndex(ctx context.Context, provider vector.Provider, emb embedder.Embedder, collection string) (*VectorIndex, error) {
	if provider == nil {
		return nil, fmt.Errorf("vector provider is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("embedder is required for vector index")
	}
	if collection == "" {
		collection = DefaultCollection
	}

	if err := provider.CreateCollection(ctx, collection, emb.Dimension()); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", collection, err)
	}

	slog.Info("Created vector index",
		"provider", provider.Name(),
		"collection", collection,
		"embedder", emb.Model())

	return &VectorIndex{provider: provider, embedder: emb, collection: collection}, nil
}

// Index embeds and upserts a document under its UUID.
func (v *VectorIndex) Index(ctx context.Context, doc *document.Document) error {
	embedding, err := v.embedder.Embed(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("failed to embed document %s: %w", doc.UUID, err)
	}

	payload := Payload(doc)
	metadata := make(map[string]any, len(payload)+2)
	for k, val := range payload {
		metadata[k] = val
	}
	metadata[payloadContent] = doc.Text
	if doc.Metadata.Name != "" {
		metadata["name"] = doc.Metadata.Name
	}

	return v.provider.Upsert(ctx, v.collection, doc.UUID, embedding, metadata)
}

// SearchSimilar embeds query and returns the closest documents matching
// filters.
func (v *VectorIndex) SearchSimilar(ctx context.Context, query string, filters search.Filters, limit int) ([]search.Hit, error) {
	embedding, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := v.provider.SearchWithFilter(ctx, v.collection, embedding, limit, filters.Map())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]search.Hit, 0, len(results))
	for _, r := range results {
		id := r.ID
		if d, ok := r.Metadata[search.KeyDocumentUUID].(string); ok && d != "" {
			id = d
		}
		hits = append(hits, search.Hit{DocumentUUID: id, Score: float64(r.Score)})
	}
	return hits, nil
}

// Delete removes a document vector.
func (v *VectorIndex) Delete(ctx context.Context, documentUUID string) error {
	if err := v.provider.Delete(ctx, v.collection, documentUUID); err != nil {
		return fmt.Errorf("vector delete %s: %w", documentUUID, err)
	}
	return nil
}
