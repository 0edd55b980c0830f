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

package document

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// ContentType is the media kind of a document.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentAudio    ContentType = "audio"
	ContentImage    ContentType = "image"
	ContentDocument ContentType = "document"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentText, ContentAudio, ContentImage, ContentDocument:
		return true
	}
	return false
}

// Role is the content role of a document.
type Role string

const (
	RoleChunk  Role = "chunk"
	RoleFull   Role = "full"
	RoleMemory Role = "memory"
)

// Variant is the closed set of role specific metadata. Only the types in this
// package implement it.
type Variant interface {
	Role() Role
	validate() error
}

// MemoryMetadata marks a document that backs a memory.
type MemoryMetadata struct {
	Category    string
	Subcategory string
}

func (MemoryMetadata) Role() Role { return RoleMemory }

func (m MemoryMetadata) validate() error {
	if m.Category == "" || m.Subcategory == "" {
		return fmt.Errorf("memory metadata requires category and subcategory")
	}
	return nil
}

// NewMemoryMetadata returns a memory variant, rejecting empty fields.
func NewMemoryMetadata(category, subcategory string) (MemoryMetadata, error) {
	m := MemoryMetadata{Category: category, Subcategory: subcategory}
	return m, m.validate()
}

// ChunkMetadata marks one segment of a split text.
type ChunkMetadata struct {
	Index int
	Total int
}

func (ChunkMetadata) Role() Role { return RoleChunk }

func (c ChunkMetadata) validate() error {
	if c.Total < 1 || c.Index < 0 || c.Index >= c.Total {
		return fmt.Errorf("chunk metadata index %d out of range for total %d", c.Index, c.Total)
	}
	return nil
}

// FullMetadata marks a document holding complete content.
type FullMetadata struct{}

func (FullMetadata) Role() Role { return RoleFull }

func (FullMetadata) validate() error { return nil }

// Headers maps h1..h6 to the header path active for a chunk.
type Headers map[string][]string

func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = slices.Clone(v)
	}
	return out
}

// Metadata is the structured blob attached to every document.
type Metadata struct {
	Type        ContentType
	Variant     Variant
	Tokens      int
	Source      string
	Name        string
	Description string
	ShouldIndex bool
	Headers     Headers
	URLs        []string
	Images      []string
	Extra       map[string]any
}

// Role defaults to full when no variant is set.
func (m Metadata) Role() Role {
	if m.Variant == nil {
		return RoleFull
	}
	return m.Variant.Role()
}

// Memory returns the memory variant, if any.
func (m Metadata) Memory() (MemoryMetadata, bool) {
	v, ok := m.Variant.(MemoryMetadata)
	return v, ok
}

// Chunk returns the chunk variant, if any.
func (m Metadata) Chunk() (ChunkMetadata, bool) {
	v, ok := m.Variant.(ChunkMetadata)
	return v, ok
}

func (m Metadata) Validate() error {
	if m.Type != "" && !m.Type.Valid() {
		return fmt.Errorf("invalid content type %q", m.Type)
	}
	if m.Variant == nil {
		return nil
	}
	return m.Variant.validate()
}

func (m Metadata) Clone() Metadata {
	c := m
	c.Headers = m.Headers.Clone()
	c.URLs = slices.Clone(m.URLs)
	c.Images = slices.Clone(m.Images)
	c.Extra = maps.Clone(m.Extra)
	return c
}

type wireMetadata struct {
	Type        ContentType    `json:"content_type,omitempty"`
	Role        Role           `json:"role"`
	Tokens      int            `json:"tokens"`
	ChunkIndex  *int           `json:"chunk_index,omitempty"`
	TotalChunks *int           `json:"total_chunks,omitempty"`
	Category    string         `json:"category,omitempty"`
	Subcategory string         `json:"subcategory,omitempty"`
	Source      string         `json:"source,omitempty"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	ShouldIndex bool           `json:"should_index"`
	Headers     Headers        `json:"headers,omitempty"`
	URLs        []string       `json:"urls,omitempty"`
	Images      []string       `json:"images,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	w := wireMetadata{
		Type:        m.Type,
		Role:        m.Role(),
		Tokens:      m.Tokens,
		Source:      m.Source,
		Name:        m.Name,
		Description: m.Description,
		ShouldIndex: m.ShouldIndex,
		Headers:     m.Headers,
		URLs:        m.URLs,
		Images:      m.Images,
		Extra:       m.Extra,
	}
	switch v := m.Variant.(type) {
	case MemoryMetadata:
		w.Category = v.Category
		w.Subcategory = v.Subcategory
	case ChunkMetadata:
		idx, total := v.Index, v.Total
		w.ChunkIndex = &idx
		w.TotalChunks = &total
	}
	return json.Marshal(w)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var w wireMetadata
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*m = Metadata{
		Type:        w.Type,
		Tokens:      w.Tokens,
		Source:      w.Source,
		Name:        w.Name,
		Description: w.Description,
		ShouldIndex: w.ShouldIndex,
		Headers:     w.Headers,
		URLs:        w.URLs,
		Images:      w.Images,
		Extra:       w.Extra,
	}

	switch w.Role {
	case RoleMemory:
		m.Variant = MemoryMetadata{Category: w.Category, Subcategory: w.Subcategory}
	case RoleChunk:
		c := ChunkMetadata{Index: 0, Total: 1}
		if w.ChunkIndex != nil {
			c.Index = *w.ChunkIndex
		}
		if w.TotalChunks != nil {
			c.Total = *w.TotalChunks
		}
		m.Variant = c
	case RoleFull, "":
		m.Variant = FullMetadata{}
	default:
		return fmt.Errorf("unknown content role %q", w.Role)
	}

	return m.Validate()
}
