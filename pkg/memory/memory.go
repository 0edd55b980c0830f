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

// Package memory stores named long-term memories and recalls them with
// self-querying hybrid search.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/index"
	"github.com/wojcikm/alice/pkg/llm"
	"github.com/wojcikm/alice/pkg/observability"
	"github.com/wojcikm/alice/pkg/search"
	"github.com/wojcikm/alice/pkg/store"
)

// Service owns memories, their documents and their index entries.
type Service struct {
	store   *store.Store
	indexer *index.Indexer
	fuser   *search.Fuser
	llm     llm.Client
	model   string
	tracer  *observability.Tracer
	metrics observability.Metrics
}

// Options configures a Service. Model defaults to the client's model.
type Options struct {
	Store   *store.Store
	Indexer *index.Indexer
	LLM     llm.Client
	Model   string
	Tracer  *observability.Tracer
	Metrics observability.Metrics
}

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if opts.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.NoopTracer()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NoopMetrics{}
	}
	return &Service{
		store:   opts.Store,
		indexer: opts.Indexer,
		fuser:   opts.Indexer.Fuser(),
		llm:     opts.LLM,
		model:   opts.Model,
		tracer:  opts.Tracer,
		metrics: opts.Metrics,
	}, nil
}

// RememberRequest describes a new memory.
type RememberRequest struct {
	Name             string
	Text             string
	Category         string
	Subcategory      string
	ConversationUUID string
}

// Remember stores a memory, its document and the conversation link in one
// transaction, then indexes the document.
func (s *Service) Remember(ctx context.Context, req RememberRequest) (*store.MemoryRecord, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errs.NewValidationError("name", "is required", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, errs.NewValidationError("text", "is required", nil)
	}
	category, err := s.category(ctx, req.Category, req.Subcategory)
	if err != nil {
		return nil, err
	}

	doc := newMemoryDocument(req.Name, req.Text, category)
	doc.ConversationUUID = req.ConversationUUID

	ts := time.Now().UTC()
	m := &store.Memory{
		UUID:         uuid.NewString(),
		Name:         req.Name,
		CategoryUUID: category.UUID,
		DocumentUUID: doc.UUID,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}
		if err := tx.InsertMemory(ctx, m); err != nil {
			return err
		}
		if req.ConversationUUID == "" {
			return nil
		}
		return tx.LinkConversationMemory(ctx, req.ConversationUUID, m.UUID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}

	if _, err := s.indexer.IndexDocument(ctx, doc); err != nil {
		if delErr := s.store.DeleteMemory(ctx, m.UUID); delErr != nil {
			slog.Error("Failed to roll back unindexed memory", "memory_uuid", m.UUID, "error", delErr)
		}
		return nil, fmt.Errorf("failed to index memory: %w", err)
	}

	slog.Info("Memory stored", "memory_uuid", m.UUID, "name", m.Name,
		"category", category.Name, "subcategory", category.Subcategory)
	return &store.MemoryRecord{Memory: *m, Category: *category, Document: doc}, nil
}

// UpdateRequest changes a memory. Empty fields keep their current value.
type UpdateRequest struct {
	MemoryUUID  string
	Name        string
	Text        string
	Category    string
	Subcategory string
}

// Update rewrites a memory and re-indexes its document. When re-indexing
// fails the previous row and document are written back and indexed again.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*store.MemoryRecord, error) {
	rec, err := s.store.GetMemory(ctx, req.MemoryUUID)
	if err != nil {
		return nil, err
	}
	if rec.Document == nil {
		return nil, errs.NewNotFoundError("document", rec.DocumentUUID)
	}
	prev, prevDoc := rec.Memory, rec.Document

	category := &rec.Category
	if req.Category != "" || req.Subcategory != "" {
		name, sub := rec.Category.Name, rec.Category.Subcategory
		if req.Category != "" {
			name = req.Category
		}
		if req.Subcategory != "" {
			sub = req.Subcategory
		}
		if category, err = s.category(ctx, name, sub); err != nil {
			return nil, err
		}
	}

	if req.Name != "" {
		rec.Name = req.Name
	}
	text := rec.Document.Text
	if req.Text != "" {
		text = req.Text
	}
	updated := newMemoryDocument(rec.Name, text, category)
	updated.UUID = rec.Document.UUID
	updated.SourceUUID = rec.Document.SourceUUID
	updated.ConversationUUID = rec.Document.ConversationUUID
	updated.CreatedAt = rec.Document.CreatedAt

	rec.CategoryUUID = category.UUID
	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.UpdateDocument(ctx, updated); err != nil {
			return err
		}
		return tx.UpdateMemory(ctx, &rec.Memory)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}

	if _, err := s.indexer.IndexDocument(ctx, updated); err != nil {
		slog.Error("Failed to re-index updated memory, restoring previous version",
			"memory_uuid", rec.UUID, "error", err)
		s.revert(ctx, prev, prevDoc)
		return nil, fmt.Errorf("failed to re-index memory: %w", err)
	}

	rec.Category = *category
	rec.Document = updated
	return rec, nil
}

// revert writes back a memory row and its document and indexes the document
// again. Failures are logged; the caller already reports the original error.
func (s *Service) revert(ctx context.Context, m store.Memory, doc *document.Document) {
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		return tx.UpdateMemory(ctx, &m)
	})
	if err != nil {
		slog.Error("Failed to restore memory", "memory_uuid", m.UUID, "error", err)
		return
	}
	if _, err := s.indexer.IndexDocument(ctx, doc); err != nil {
		slog.Error("Failed to re-index restored memory", "memory_uuid", m.UUID, "error", err)
	}
}

// Forget deletes a memory together with its document and then removes the
// document from both indices. Index entries left behind by a failed removal
// point at a missing document and are skipped by recall.
func (s *Service) Forget(ctx context.Context, memoryUUID string) (*store.MemoryRecord, error) {
	rec, err := s.store.GetMemory(ctx, memoryUUID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteMemory(ctx, memoryUUID); err != nil {
		return nil, err
	}
	if err := s.indexer.DeleteDocument(ctx, rec.DocumentUUID); err != nil {
		slog.Error("Failed to remove forgotten memory from index",
			"memory_uuid", memoryUUID, "document_uuid", rec.DocumentUUID, "error", err)
	}
	slog.Info("Memory deleted", "memory_uuid", memoryUUID, "name", rec.Name)
	return rec, nil
}

// List returns stored memories, newest first.
func (s *Service) List(ctx context.Context, category, subcategory string, limit int) ([]*store.MemoryRecord, error) {
	return s.store.ListMemories(ctx, category, subcategory, limit)
}

// Categories returns the memory taxonomy.
func (s *Service) Categories(ctx context.Context) ([]store.Category, error) {
	return s.store.ListCategories(ctx)
}

// RecentContext lists the categories of the memories linked to a
// conversation, or the whole taxonomy when there are none yet.
func (s *Service) RecentContext(ctx context.Context, conversationUUID string) (*document.Document, error) {
	var pairs []store.Category
	if conversationUUID != "" {
		recs, err := s.store.ListConversationMemories(ctx, conversationUUID)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, r := range recs {
			if !seen[r.Category.UUID] {
				seen[r.Category.UUID] = true
				pairs = append(pairs, r.Category)
			}
		}
	}
	if len(pairs) == 0 {
		all, err := s.store.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		pairs = all
	}

	lines := make([]string, 0, len(pairs))
	for _, c := range pairs {
		lines = append(lines, fmt.Sprintf(`<category name="%s" subcategory="%s"/>`, c.Name, c.Subcategory))
	}
	text := strings.Join(lines, "\n")
	if text == "" {
		text = "No recent memory categories found."
	}

	doc := document.New(text, document.Metadata{
		Type:        document.ContentDocument,
		Variant:     document.FullMetadata{},
		Name:        "RecentMemoryCategories",
		Source:      document.SourceMemoryService,
		Description: "Memory categories used in this conversation",
	})
	doc.ConversationUUID = conversationUUID
	return doc, nil
}

// Render formats a memory the way recall and remember report it.
func Render(rec *store.MemoryRecord) string {
	text := "No content available"
	if rec.Document != nil {
		text = rec.Document.Text
	}
	return fmt.Sprintf(`<memory name="%s" memory-uuid="%s">%s</memory>`, rec.Name, rec.UUID, text)
}

func (s *Service) category(ctx context.Context, name, subcategory string) (*store.Category, error) {
	c, err := s.store.FindCategory(ctx, name, subcategory)
	if errs.IsNotFound(err) {
		return nil, errs.NewValidationError("category",
			fmt.Sprintf("unknown category %s/%s", name, subcategory), err)
	}
	return c, err
}

func newMemoryDocument(name, text string, c *store.Category) *document.Document {
	return document.New(text, document.Metadata{
		Type:        document.ContentText,
		Variant:     document.MemoryMetadata{Category: c.Name, Subcategory: c.Subcategory},
		Name:        name,
		Description: "Memory: " + name,
		Source:      document.SourceMemory,
		ShouldIndex: true,
	})
}
