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

// Package documenttool loads files into the document store and searches
// them.
package documenttool

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/wojcikm/alice/pkg/chunker"
	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/extract"
	"github.com/wojcikm/alice/pkg/index"
	"github.com/wojcikm/alice/pkg/store"
)

// DefaultChunkLimit is the token budget of one ingested chunk.
const DefaultChunkLimit = 1000

// Ingester extracts, chunks, stores and indexes files.
type Ingester struct {
	store   *store.Store
	indexer *index.Indexer
	chunker *chunker.Chunker
	limit   int
}

func NewIngester(s *store.Store, ix *index.Indexer, c *chunker.Chunker, limit int) *Ingester {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	return &Ingester{store: s, indexer: ix, chunker: c, limit: limit}
}

// SourceUUID is the stable source identifier of a file path.
func SourceUUID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// Ingest loads the file at path. Chunks from an earlier load of the same
// path are replaced.
func (i *Ingester) Ingest(ctx context.Context, path, conversationUUID string) ([]*document.Document, error) {
	res, err := extract.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	source := SourceUUID(path)

	if err := i.Remove(ctx, source); err != nil {
		return nil, err
	}

	meta := document.Metadata{
		Type:        document.ContentDocument,
		Name:        res.Name,
		Description: fmt.Sprintf("%s file %s", res.Format, res.Name),
		Source:      document.SourceFile,
		ShouldIndex: true,
		Extra:       res.Metadata,
	}
	opts := []chunker.Option{chunker.WithSourceUUID(source)}
	if conversationUUID != "" {
		opts = append(opts, chunker.WithConversation(conversationUUID))
	}

	var docs []*document.Document
	for doc := range i.chunker.Split(res.Text, i.limit, meta, opts...) {
		if err := i.store.InsertDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to store chunk %d of %s: %w", len(docs), res.Name, err)
		}
		if _, err := i.indexer.IndexDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to index chunk %d of %s: %w", len(docs), res.Name, err)
		}
		docs = append(docs, doc)
	}

	slog.Info("File ingested", "path", path, "chunks", len(docs), "source_uuid", source)
	return docs, nil
}

// Remove deletes every stored chunk of a source from the indices and the
// store.
func (i *Ingester) Remove(ctx context.Context, sourceUUID string) error {
	existing, err := i.store.ListDocumentsBySource(ctx, sourceUUID)
	if err != nil {
		return err
	}
	for _, d := range existing {
		if err := i.indexer.DeleteDocument(ctx, d.UUID); err != nil {
			return fmt.Errorf("failed to unindex %s: %w", d.UUID, err)
		}
		if err := i.store.DeleteDocument(ctx, d.UUID); err != nil {
			return err
		}
	}
	return nil
}
