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

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/llm"
	"github.com/wojcikm/alice/pkg/search"
	"github.com/wojcikm/alice/pkg/store"
)

const (
	DefaultRecallLimit = 15
	MaxRecallLimit     = 100
)

// SelfQueryOperation names the completion that decomposes a recall query.
const SelfQueryOperation = "memory.self_query"

// Query is one scoped sub-query produced by the self-query step.
type Query struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Question    string `json:"question" jsonschema:"description=Natural language question used for semantic search"`
	Query       string `json:"query" jsonschema:"description=Keywords used for keyword search"`
}

// SelfQuery is the structured output of the self-query step.
type SelfQuery struct {
	Thinking string  `json:"_thinking"`
	Queries  []Query `json:"queries"`
}

// RecallRequest asks for memories relevant to Query.
type RecallRequest struct {
	Query            string
	Filters          search.Filters
	Limit            int
	ConversationUUID string
	AIName           string
	UserName         string
}

// Recollection is the outcome of a recall: the memories found and the
// document that reports them.
type Recollection struct {
	Queries  []Query
	Memories []*store.MemoryRecord
	Document *document.Document
}

// Recall decomposes the query into sub-queries scoped to the taxonomy,
// runs them concurrently through hybrid search, then deduplicates by memory
// and truncates to the limit.
func (s *Service) Recall(ctx context.Context, req RecallRequest) (*Recollection, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errs.NewValidationError("query", "is required", nil)
	}
	if req.Limit <= 0 {
		req.Limit = DefaultRecallLimit
	}
	if req.Limit > MaxRecallLimit {
		return nil, errs.NewValidationError("limit", fmt.Sprintf("must be at most %d", MaxRecallLimit), nil)
	}

	ctx, span := s.tracer.StartMemorySearch(ctx, req.Query, req.Limit)
	defer span.End()
	start := time.Now()

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	queries, err := s.selfQuery(ctx, req, categories)
	if err != nil {
		return nil, err
	}

	perQuery := (req.Limit + len(queries) - 1) / len(queries)
	results := make([][]search.Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		filters := req.Filters
		filters.Role = string(document.RoleMemory)
		if q.Category != "" {
			filters.Category = q.Category
			filters.Subcategory = q.Subcategory
		}
		g.Go(func() error {
			res, err := s.fuser.Search(gctx, search.Query{
				Vector:  q.Question,
				Keyword: q.Query,
				Filters: filters,
				Limit:   perQuery,
			})
			if err != nil {
				return fmt.Errorf("sub-query %q: %w", q.Question, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var docIDs []string
	for _, res := range results {
		for _, r := range res {
			docIDs = append(docIDs, r.DocumentUUID)
		}
	}
	found, err := s.store.MemoriesByDocuments(ctx, docIDs)
	if err != nil {
		return nil, err
	}

	memories := make([]*store.MemoryRecord, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, m := range found {
		if seen[m.UUID] {
			continue
		}
		seen[m.UUID] = true
		memories = append(memories, m)
	}
	if len(memories) > req.Limit {
		memories = memories[:req.Limit]
	}

	s.metrics.RecordRecall(ctx, time.Since(start), len(memories))
	slog.Info("Memories recalled", "query", req.Query, "sub_queries", len(queries), "hits", len(memories))

	return &Recollection{
		Queries:  queries,
		Memories: memories,
		Document: recallDocument(memories, req.ConversationUUID),
	}, nil
}

// selfQuery keeps only sub-queries whose category pair exists. When none
// survive, the raw query runs unscoped.
func (s *Service) selfQuery(ctx context.Context, req RecallRequest, categories []store.Category) ([]Query, error) {
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.Name+"/"+c.Subcategory] = true
	}

	temp := 0.0
	out, err := llm.Object[SelfQuery](ctx, s.llm, llm.Request{
		Name:        SelfQueryOperation,
		Model:       s.model,
		Temperature: &temp,
		Messages: []llm.Message{
			llm.System(selfQueryPrompt(req.AIName, req.UserName, categories, time.Now())),
			llm.User(req.Query),
		},
	})
	if err != nil {
		return nil, err
	}

	var queries []Query
	for _, q := range out.Queries {
		if !known[q.Category+"/"+q.Subcategory] {
			slog.Warn("Dropping sub-query outside the taxonomy", "category", q.Category, "subcategory", q.Subcategory)
			continue
		}
		if q.Question == "" {
			q.Question = req.Query
		}
		if q.Query == "" {
			q.Query = req.Query
		}
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		queries = []Query{{Question: req.Query, Query: req.Query}}
	}
	return queries, nil
}

func recallDocument(memories []*store.MemoryRecord, conversationUUID string) *document.Document {
	text := "No relevant memories found."
	if len(memories) > 0 {
		rendered := make([]string, len(memories))
		for i, m := range memories {
			rendered[i] = Render(m)
		}
		text = fmt.Sprintf("Found %d relevant memories:\n\n%s", len(memories), strings.Join(rendered, "\n"))
	}

	doc := document.New(text, document.Metadata{
		Type:    document.ContentText,
		Variant: document.FullMetadata{},
		Name:    "recalled_memories",
		Source:  document.SourceMemoryService,
	})
	doc.ConversationUUID = conversationUUID
	return doc
}
