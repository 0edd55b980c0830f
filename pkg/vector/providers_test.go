package vector

import (
	"testing"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *ProviderConfig
		wantName string
		wantErr  string
	}{
		{name: "nil config", cfg: nil, wantName: "nil"},
		{name: "chromem in memory", cfg: &ProviderConfig{Type: ProviderChromem, Chromem: &ChromemConfig{}}, wantName: "chromem"},
		{name: "chromem without section", cfg: &ProviderConfig{Type: ProviderChromem}, wantName: "chromem"},
		{name: "qdrant", cfg: &ProviderConfig{Type: ProviderQdrant, Qdrant: &QdrantConfig{Host: "localhost"}}, wantName: "qdrant"},
		{name: "qdrant without section", cfg: &ProviderConfig{Type: ProviderQdrant}, wantErr: "qdrant configuration is required"},
		{name: "pinecone", cfg: &ProviderConfig{Type: ProviderPinecone, Pinecone: &PineconeConfig{APIKey: "test-key"}}, wantName: "pinecone"},
		{name: "pinecone without key", cfg: &ProviderConfig{Type: ProviderPinecone, Pinecone: &PineconeConfig{}}, wantErr: "API key is required"},
		{name: "pinecone without section", cfg: &ProviderConfig{Type: ProviderPinecone}, wantErr: "pinecone configuration is required"},
		{name: "unknown", cfg: &ProviderConfig{Type: "milvus"}, wantErr: "unknown provider type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer p.Close()
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestPineconeDefaultIndexName(t *testing.T) {
	p, err := NewPineconeProvider(PineconeConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.indexName)
}

func TestQdrantFilter(t *testing.T) {
	assert.Nil(t, qdrantFilter(nil))
	assert.Nil(t, qdrantFilter(map[string]any{}))

	f := qdrantFilter(map[string]any{
		"role":     "memory",
		"category": "resources",
		"indexed":  true,
		"year":     2024,
	})
	require.NotNil(t, f)
	require.Len(t, f.Must, 4)

	keys := make([]string, 0, len(f.Must))
	for _, c := range f.Must {
		keys = append(keys, c.GetField().GetKey())
	}
	assert.Equal(t, []string{"category", "indexed", "role", "year"}, keys)

	assert.Equal(t, "resources", f.Must[0].GetField().GetMatch().GetKeyword())
	assert.True(t, f.Must[1].GetField().GetMatch().GetBoolean())
	assert.Equal(t, "memory", f.Must[2].GetField().GetMatch().GetKeyword())
	assert.Equal(t, int64(2024), f.Must[3].GetField().GetMatch().GetInteger())
}

func TestFromScoredPoint(t *testing.T) {
	point := &qdrant.ScoredPoint{
		Id:    qdrant.NewIDUUID("0b4f5c1e-2a8d-4a57-9d1c-7a1f0f7e9a10"),
		Score: 0.87,
		Payload: map[string]*qdrant.Value{
			"content":  qdrant.NewValueString("Paris in June"),
			"category": qdrant.NewValueString("resources"),
			"chunk":    qdrant.NewValueInt(2),
			"tags": qdrant.NewValueList(&qdrant.ListValue{Values: []*qdrant.Value{
				qdrant.NewValueString("travel"),
				qdrant.NewValueBool(true),
			}}),
		},
	}

	r := fromScoredPoint(point)
	assert.Equal(t, "0b4f5c1e-2a8d-4a57-9d1c-7a1f0f7e9a10", r.ID)
	assert.Equal(t, float32(0.87), r.Score)
	assert.Equal(t, "Paris in June", r.Content)
	assert.Equal(t, "resources", r.Metadata["category"])
	assert.Equal(t, int64(2), r.Metadata["chunk"])
	assert.Equal(t, []any{"travel", true}, r.Metadata["tags"])

	numeric := fromScoredPoint(&qdrant.ScoredPoint{Id: qdrant.NewIDNum(42)})
	assert.Equal(t, "42", numeric.ID)
	assert.Empty(t, numeric.Content)
}

func TestPineconeFilter(t *testing.T) {
	f, err := pineconeFilter(nil)
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = pineconeFilter(map[string]any{"category": "resources", "role": "memory"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"category": map[string]any{"$eq": "resources"},
		"role":     map[string]any{"$eq": "memory"},
	}, f.AsMap())

	_, err = pineconeFilter(map[string]any{"bad": make(chan int)})
	require.Error(t, err)
}

func TestPineconeMetadata(t *testing.T) {
	meta, err := pineconeMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, meta)

	meta, err = pineconeMetadata(map[string]any{"content": "Paris", "source": "memory"})
	require.NoError(t, err)
	assert.Equal(t, "Paris", meta.GetFields()["content"].GetStringValue())
}

func TestFromScoredVectors(t *testing.T) {
	meta, err := structpb.NewStruct(map[string]any{"content": "Paris in June", "category": "resources"})
	require.NoError(t, err)

	results := fromScoredVectors([]*pinecone.ScoredVector{
		{Vector: &pinecone.Vector{Id: "a", Metadata: meta}, Score: 0.9},
		{Vector: nil, Score: 0.5},
		{Vector: &pinecone.Vector{Id: "b"}, Score: 0.4},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "Paris in June", results[0].Content)
	assert.Equal(t, "resources", results[0].Metadata["category"])
	assert.Equal(t, "b", results[1].ID)
	assert.Empty(t, results[1].Content)
	assert.NotNil(t, results[1].Metadata)
}
