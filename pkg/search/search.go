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

// Package search merges vector and keyword result sets with reciprocal
// rank fusion.
package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
)

// DefaultK is the RRF damping constant.
const DefaultK = 60

// relevanceFloor drops vector hits scoring below this share of the mean
// vector score before fusion.
const relevanceFloor = 0.5

// Payload keys shared by every index backend.
const (
	KeyDocumentUUID     = "document_uuid"
	KeySourceUUID       = "source_uuid"
	KeySource           = "source"
	KeyRole             = "role"
	KeyContentType      = "content_type"
	KeyCategory         = "category"
	KeySubcategory      = "subcategory"
	KeyConversationUUID = "conversation_uuid"
)

// Filters restrict both backends before ranking. Empty fields are ignored.
type Filters struct {
	SourceUUID  string `json:"source_uuid,omitempty"`
	Source      string `json:"source,omitempty"`
	Role        string `json:"role,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
}

// Map returns the non-empty filters keyed by payload key.
func (f Filters) Map() map[string]any {
	m := make(map[string]any, 6)
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	set(KeySourceUUID, f.SourceUUID)
	set(KeySource, f.Source)
	set(KeyRole, f.Role)
	set(KeyContentType, f.ContentType)
	set(KeyCategory, f.Category)
	set(KeySubcategory, f.Subcategory)
	return m
}

// Match reports whether a flat payload satisfies every filter.
func (f Filters) Match(payload map[string]string) bool {
	for k, v := range f.Map() {
		if payload[k] != v {
			return false
		}
	}
	return true
}

// Hit is one ranked result from a single backend, best first.
type Hit struct {
	DocumentUUID string
	Score        float64
}

// Result is a fused hit. A zero rank means the backend did not return the
// document.
type Result struct {
	DocumentUUID string
	Score        float64
	VectorRank   int
	KeywordRank  int
}

// VectorSearcher runs similarity search for a natural language query.
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, query string, filters Filters, limit int) ([]Hit, error)
}

// KeywordSearcher runs lexical search.
type KeywordSearcher interface {
	Search(ctx context.Context, query string, filters Filters, limit int) ([]Hit, error)
}

// Fuse scores documents by 1/(k+rank_vector) + 1/(k+rank_keyword). Vector
// hits below half the mean vector score are removed first and the remaining
// ones re-ranked. Output is sorted by fused score, highest first.
func Fuse(vector, keyword []Hit, k int) []Result {
	if k <= 0 {
		k = DefaultK
	}

	vector = applyFloor(vector)
	byID := make(map[string]*Result, len(vector)+len(keyword))
	order := make([]string, 0, len(vector)+len(keyword))

	get := func(id string) *Result {
		r, ok := byID[id]
		if !ok {
			r = &Result{DocumentUUID: id}
			byID[id] = r
			order = append(order, id)
		}
		return r
	}

	for i, h := range vector {
		r := get(h.DocumentUUID)
		if r.VectorRank == 0 {
			r.VectorRank = i + 1
		}
	}
	for i, h := range keyword {
		r := get(h.DocumentUUID)
		if r.KeywordRank == 0 {
			r.KeywordRank = i + 1
		}
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		r := byID[id]
		r.Score = rrf(r.VectorRank, k) + rrf(r.KeywordRank, k)
		results = append(results, *r)
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return results
}

func rrf(rank, k int) float64 {
	if rank == 0 {
		return 0
	}
	return 1 / float64(k+rank)
}

func applyFloor(hits []Hit) []Hit {
	if len(hits) == 0 {
		return hits
	}
	var sum float64
	for _, h := range hits {
		sum += h.Score
	}
	mean := sum / float64(len(hits))
	if mean <= 0 {
		return hits
	}
	threshold := relevanceFloor * mean

	kept := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= threshold {
			kept = append(kept, h)
		}
	}
	return kept
}

// Query is one hybrid search request.
type Query struct {
	Vector  string
	Keyword string
	Filters Filters
	Limit   int
}

// Fuser runs both backends concurrently and fuses their results.
type Fuser struct {
	vector  VectorSearcher
	keyword KeywordSearcher
	k       int
}

// NewFuser creates a Fuser with the default RRF constant.
func NewFuser(vector VectorSearcher, keyword KeywordSearcher) *Fuser {
	return &Fuser{vector: vector, keyword: keyword, k: DefaultK}
}

// Search fetches Limit hits from each backend, fuses them and returns at
// most Limit results.
func (f *Fuser) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.Limit <= 0 {
		return nil, fmt.Errorf("search limit must be positive, got %d", q.Limit)
	}

	var vectorHits, keywordHits []Hit
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if q.Vector == "" {
			return nil
		}
		hits, err := f.vector.SearchSimilar(gctx, q.Vector, q.Filters, q.Limit)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		vectorHits = hits
		return nil
	})
	g.Go(func() error {
		if q.Keyword == "" {
			return nil
		}
		hits, err := f.keyword.Search(gctx, q.Keyword, q.Filters, q.Limit)
		if err != nil {
			return fmt.Errorf("keyword search: %w", err)
		}
		keywordHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := Fuse(vectorHits, keywordHits, f.k)
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}
