package document

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataJSONCarriesVariant(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		role    Role
	}{
		{"memory", MemoryMetadata{Category: "resources", Subcategory: "travel"}, RoleMemory},
		{"chunk", ChunkMetadata{Index: 1, Total: 3}, RoleChunk},
		{"full", FullMetadata{}, RoleFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := Metadata{Type: ContentText, Variant: tt.variant, Tokens: 12}
			raw, err := json.Marshal(meta)
			require.NoError(t, err)
			assert.Contains(t, string(raw), `"role":"`+string(tt.role)+`"`)
			assert.Contains(t, string(raw), `"content_type":"text"`)

			var decoded Metadata
			require.NoError(t, json.Unmarshal(raw, &decoded))
			assert.Equal(t, tt.variant, decoded.Variant)
			assert.Equal(t, tt.role, decoded.Role())
		})
	}
}

func TestMemoryMetadataRequiresCategory(t *testing.T) {
	_, err := NewMemoryMetadata("resources", "")
	require.Error(t, err)

	var meta Metadata
	err = json.Unmarshal([]byte(`{"role":"memory","category":"profiles"}`), &meta)
	require.Error(t, err)
}

func TestChunkMetadataRange(t *testing.T) {
	meta := Metadata{Variant: ChunkMetadata{Index: 3, Total: 3}}
	require.Error(t, meta.Validate())

	meta.Variant = ChunkMetadata{Index: 2, Total: 3}
	require.NoError(t, meta.Validate())
}

func TestDefaultRoleIsFull(t *testing.T) {
	doc := New("hello", Metadata{})
	assert.Equal(t, RoleFull, doc.Role())
	assert.Equal(t, doc.UUID, doc.SourceUUID)
	require.NoError(t, doc.Validate())
}

func TestCloneIsDeep(t *testing.T) {
	doc := New("x", Metadata{Headers: Headers{"h1": {"A"}}, URLs: []string{"https://a"}})
	c := doc.Clone()
	c.Metadata.Headers["h1"][0] = "B"
	c.Metadata.URLs[0] = "changed"

	assert.Equal(t, "A", doc.Metadata.Headers["h1"][0])
	assert.Equal(t, "https://a", doc.Metadata.URLs[0])
}

func TestNewErrorDocument(t *testing.T) {
	doc := NewErrorDocument(errors.New("timeout"), "memory.recall", "conv-1")

	assert.True(t, strings.HasPrefix(doc.Text, "Error: timeout\nContext: memory.recall"))
	assert.Equal(t, "error_report", doc.Metadata.Name)
	assert.Equal(t, SourceSystem, doc.Metadata.Source)
	assert.Equal(t, "conv-1", doc.ConversationUUID)
}
