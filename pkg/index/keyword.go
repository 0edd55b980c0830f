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
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/search"
)

// MemoryKeywordIndex is an in-process keyword index. Scores count the query
// words a document contains.
type MemoryKeywordIndex struct {
	mu      sync.RWMutex
	entries map[string]keywordEntry
}

type keywordEntry struct {
	words   map[string]struct{}
	payload map[string]string
}

func NewMemoryKeywordIndex() *MemoryKeywordIndex {
	return &MemoryKeywordIndex{entries: make(map[string]keywordEntry)}
}

// Index replaces any previous entry for the document.
func (k *MemoryKeywordIndex) Index(_ context.Context, doc *document.Document) error {
	entry := keywordEntry{
		words:   Tokenize(doc.Metadata.Name + " " + doc.Text),
		payload: Payload(doc),
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries[doc.UUID] = entry
	return nil
}

func (k *MemoryKeywordIndex) Search(_ context.Context, query string, filters search.Filters, limit int) ([]search.Hit, error) {
	queryWords := Tokenize(query)
	if len(queryWords) == 0 || limit <= 0 {
		return nil, nil
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	var hits []search.Hit
	for id, entry := range k.entries {
		if !filters.Match(entry.payload) {
			continue
		}
		if score := Score(queryWords, entry.words); score > 0 {
			hits = append(hits, search.Hit{DocumentUUID: id, Score: score})
		}
	}

	slices.SortFunc(hits, func(a, b search.Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.DocumentUUID, b.DocumentUUID)
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (k *MemoryKeywordIndex) Delete(_ context.Context, documentUUID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.entries, documentUUID)
	return nil
}

func (k *MemoryKeywordIndex) Name() string { return "memory" }

var _ KeywordIndex = (*MemoryKeywordIndex)(nil)

// Tokenize splits text into the set of lowercase words longer than two
// bytes, with surrounding punctuation removed.
func Tokenize(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}<>")
		if len(word) > 2 {
			words[word] = struct{}{}
		}
	}
	return words
}

// Score returns the number of query words present in doc.
func Score(query, doc map[string]struct{}) float64 {
	var score float64
	for word := range query {
		if _, ok := doc[word]; ok {
			score++
		}
	}
	return score
}
