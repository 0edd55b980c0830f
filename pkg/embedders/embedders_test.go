package embedders

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojcikm/alice/pkg/embedder"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(256)

	a, err := e.Embed(ctx, "Paris in June")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "where am I going in June?")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "favourite programming language")
	require.NoError(t, err)

	assert.Len(t, a, 256)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)
	assert.Greater(t, cosine(a, b), cosine(a, c))

	again, err := e.Embed(ctx, "paris, in JUNE")
	require.NoError(t, err)
	assert.Equal(t, a, again)

	empty, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, float32(1), empty[0])
}

func TestOpenAIEmbedder_BatchOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req OpenAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float32{float32(len(req.Input[i]))}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer server.Close()

	e, err := New(embedder.Config{Provider: embedder.ProviderOpenAI, APIKey: "key", BaseURL: server.URL, BatchSize: 2})
	require.NoError(t, err)

	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vectors)
	assert.Equal(t, 1536, e.Dimension())
}

func TestNewValidates(t *testing.T) {
	_, err := New(embedder.Config{Provider: embedder.ProviderOpenAI})
	require.Error(t, err)

	_, err = New(embedder.Config{Provider: "cohere"})
	require.Error(t, err)

	e, err := New(embedder.Config{})
	require.NoError(t, err)
	assert.Equal(t, "hash-bow", e.Model())
}
