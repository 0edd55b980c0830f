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

// Package chunker splits text into token bounded documents.
//
// Chunks cover the input with no gaps or overlaps. Each chunk records the
// markdown header path active at that point, and links and images are
// replaced with positional placeholders ({{$url0}}, {{$img0}}) whose targets
// are kept in the chunk metadata. RestorePlaceholders reverses the
// substitution exactly.
package chunker

import (
	"fmt"
	"iter"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wojcikm/alice/pkg/document"
)

// NoLimit puts the whole text in a single chunk.
const NoLimit = math.MaxInt

// chatTemplate approximates the wrapper a chunk is sent in.
const chatTemplate = "<|im_start|>user\n<|im_end|>\n<|im_start|>assistant<|im_end|>"

// Counter counts tokens. *utils.TokenCounter satisfies it.
type Counter interface {
	Count(text string) int
}

// Chunker splits text against a token budget.
type Chunker struct {
	counter  Counter
	overhead int
}

// New creates a Chunker. The formatting overhead of the chat wrapper is
// computed once and charged against every chunk.
func New(counter Counter) *Chunker {
	overhead := counter.Count(chatTemplate) - counter.Count("")
	if overhead < 0 {
		overhead = 0
	}
	return &Chunker{counter: counter, overhead: overhead}
}

// Overhead returns the per-chunk formatting cost in tokens.
func (c *Chunker) Overhead() int {
	return c.overhead
}

type splitOptions struct {
	sourceUUID       string
	conversationUUID string
}

// Option configures a Split call.
type Option func(*splitOptions)

// WithSourceUUID sets the source shared by all chunks. It defaults to an
// identifier derived from the text itself.
func WithSourceUUID(id string) Option {
	return func(o *splitOptions) { o.sourceUUID = id }
}

// WithConversation attaches the chunks to a conversation.
func WithConversation(id string) Option {
	return func(o *splitOptions) { o.conversationUUID = id }
}

// Split returns the chunks of text as a lazy sequence. Boundaries are found
// when iteration starts; documents are built one at a time as they are
// yielded. The sequence can be ranged over more than once and produces the
// same chunks, with the same UUIDs, each time.
//
// A single chunk keeps the caller's metadata variant. Multi-chunk splits
// carry ChunkMetadata{Index, Total}.
func (c *Chunker) Split(text string, limit int, meta document.Metadata, opts ...Option) iter.Seq[*document.Document] {
	o := splitOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sourceUUID == "" {
		o.sourceUUID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(text)).String()
	}

	return func(yield func(*document.Document) bool) {
		bounds := c.boundaries(text, limit)
		headers := document.Headers{}

		for i, b := range bounds {
			raw := text[b[0]:b[1]]
			headers = updateHeaders(headers, extractHeaders(raw))
			doc := c.build(raw, i, len(bounds), meta, headers, o)
			if !yield(doc) {
				return
			}
		}
	}
}

// Collect is a convenience wrapper that materializes Split.
func (c *Chunker) Collect(text string, limit int, meta document.Metadata, opts ...Option) []*document.Document {
	var docs []*document.Document
	for doc := range c.Split(text, limit, meta, opts...) {
		docs = append(docs, doc)
	}
	return docs
}

func (c *Chunker) build(raw string, index, total int, meta document.Metadata, headers document.Headers, o splitOptions) *document.Document {
	text, urls, images := extractPlaceholders(raw)

	m := meta.Clone()
	m.Tokens = c.counter.Count(raw)
	m.Headers = headers.Clone()
	m.URLs = urls
	m.Images = images
	if m.Type == "" {
		m.Type = document.ContentText
	}
	if total > 1 || m.Variant == nil {
		m.Variant = document.ChunkMetadata{Index: index, Total: total}
	}

	now := time.Now().UTC()
	ns := uuid.NewSHA1(uuid.NameSpaceOID, []byte(o.sourceUUID))
	return &document.Document{
		UUID:             uuid.NewSHA1(ns, []byte(fmt.Sprintf("%d:%s", index, raw))).String(),
		SourceUUID:       o.sourceUUID,
		ConversationUUID: o.conversationUUID,
		Text:             text,
		Metadata:         m,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// boundaries returns the [start, end) byte ranges of every chunk.
func (c *Chunker) boundaries(text string, limit int) [][2]int {
	if limit == NoLimit || text == "" {
		return [][2]int{{0, len(text)}}
	}

	// offs[i] is the byte offset of rune i; offs[n] == len(text).
	offs := make([]int, 0, len(text)+1)
	for i := range text {
		offs = append(offs, i)
	}
	offs = append(offs, len(text))
	n := len(offs) - 1

	var bounds [][2]int
	si := 0
	for si < n {
		ei := c.findEnd(text, offs, si, n, limit)
		end := offs[ei]
		if ei < n {
			end = c.adjustBoundary(text, offs[si], end, limit)
		}
		if end <= offs[si] {
			// Nothing fits; take one rune so the split always advances.
			end = offs[si+1]
		}
		bounds = append(bounds, [2]int{offs[si], end})
		for si < n && offs[si] < end {
			si++
		}
	}
	return bounds
}

func (c *Chunker) fits(text string, start, end, limit int) bool {
	return c.counter.Count(text[start:end])+c.overhead <= limit
}

// findEnd binary searches the largest rune index whose prefix fits.
func (c *Chunker) findEnd(text string, offs []int, si, n, limit int) int {
	lo, hi := si, n
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.fits(text, offs[si], offs[mid], limit) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// adjustBoundary moves end just past a nearby newline when that still fits,
// preferring the following newline over the preceding one.
func (c *Chunker) adjustBoundary(text string, start, end, limit int) int {
	if next := strings.IndexByte(text[end:], '\n'); next != -1 {
		candidate := end + next + 1
		if c.fits(text, start, candidate, limit) {
			return candidate
		}
	}

	if prev := strings.LastIndexByte(text[start:end], '\n'); prev != -1 {
		candidate := start + prev + 1
		if candidate > start && candidate < end && c.fits(text, start, candidate, limit) {
			return candidate
		}
	}

	return end
}
