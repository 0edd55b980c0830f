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

package documenttool

import (
	"context"
	"fmt"
	"strings"

	"github.com/wojcikm/alice/pkg/chunker"
	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/search"
	"github.com/wojcikm/alice/pkg/store"
	"github.com/wojcikm/alice/pkg/tool"
)

const (
	Name = "documents"

	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

type Tool struct {
	ingester *Ingester
	store    *store.Store
	fuser    *search.Fuser
	actions  tool.Actions
}

func New(ingester *Ingester, s *store.Store, fuser *search.Fuser) *Tool {
	t := &Tool{ingester: ingester, store: s, fuser: fuser}
	t.actions = tool.Actions{
		"load":   tool.Action(t.load),
		"search": tool.Action(t.search),
	}
	return t
}

func (t *Tool) Name() string { return Name }

func (t *Tool) Description() string {
	return "Read local files (pdf, docx, xlsx, text) into the knowledge base and search their contents."
}

func (t *Tool) Instruction() string {
	return `Action "load" with payload {"path": string}: read a file and store it for search.
Action "search" with payload {"query": string, "limit": number 1-50, default 5}: search loaded documents.`
}

func (t *Tool) Execute(ctx context.Context, call tool.Call) (*document.Document, error) {
	return t.actions.Dispatch(ctx, Name, call)
}

type loadPayload struct {
	Path string `json:"path"`
}

func (p *loadPayload) Validate() error {
	if strings.TrimSpace(p.Path) == "" {
		return errs.NewValidationError("path", "is required", nil)
	}
	return nil
}

func (t *Tool) load(ctx context.Context, call tool.Call, p loadPayload) (*document.Document, error) {
	docs, err := t.ingester.Ingest(ctx, p.Path, call.ConversationUUID)
	if err != nil {
		return nil, err
	}
	name := p.Path
	if len(docs) > 0 {
		name = docs[0].Metadata.Name
	}
	return result(fmt.Sprintf("Loaded %s into %d chunks.", name, len(docs)), "document_loaded"), nil
}

type searchPayload struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (p *searchPayload) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return errs.NewValidationError("query", "is required", nil)
	}
	if p.Limit == 0 {
		p.Limit = defaultSearchLimit
	}
	if p.Limit < 1 || p.Limit > maxSearchLimit {
		return errs.NewValidationError("limit", fmt.Sprintf("must be within 1..%d", maxSearchLimit), nil)
	}
	return nil
}

func (t *Tool) search(ctx context.Context, _ tool.Call, p searchPayload) (*document.Document, error) {
	results, err := t.fuser.Search(ctx, search.Query{
		Vector:  p.Query,
		Keyword: p.Query,
		Filters: search.Filters{Source: document.SourceFile},
		Limit:   p.Limit,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocumentUUID
	}
	docs, err := t.store.GetDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return result("No matching documents found.", "search_results"), nil
	}

	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = fmt.Sprintf(`<document name="%s" uuid="%s">%s</document>`,
			d.Metadata.Name, d.UUID, chunker.RestorePlaceholders(d))
	}
	return result(fmt.Sprintf("Found %d matching fragments:\n\n%s", len(docs), strings.Join(parts, "\n")), "search_results"), nil
}

func result(text, name string) *document.Document {
	return document.New(text, document.Metadata{
		Type:    document.ContentText,
		Variant: document.FullMetadata{},
		Name:    name,
		Source:  Name,
	})
}
