package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/embedders"
	"github.com/wojcikm/alice/pkg/search"
	"github.com/wojcikm/alice/pkg/vector"
)

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	ctx := context.Background()

	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	vi, err := NewVectorIndex(ctx, provider, embedders.NewHashEmbedder(256), "")
	require.NoError(t, err)
	return NewIndexer(vi, NewMemoryKeywordIndex())
}

func memoryDoc(t *testing.T, text, category, subcategory string) *document.Document {
	t.Helper()
	meta, err := document.NewMemoryMetadata(category, subcategory)
	require.NoError(t, err)
	return document.New(text, document.Metadata{
		Type:        document.ContentText,
		Variant:     meta,
		Source:      document.SourceMemory,
		ShouldIndex: true,
	})
}

func TestIndexerSkipsUnflaggedDocuments(t *testing.T) {
	ix := newTestIndexer(t)
	doc := document.New("not for search", document.Metadata{})

	indexed, err := ix.IndexDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, indexed)

	hits, err := ix.keyword.Search(context.Background(), "search", search.Filters{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexerHybridSearchWithFilters(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndexer(t)

	trip := memoryDoc(t, "Paris in June", "resources", "travel")
	book := memoryDoc(t, "Reading Dune in June", "resources", "books")
	for _, d := range []*document.Document{trip, book} {
		indexed, err := ix.IndexDocument(ctx, d)
		require.NoError(t, err)
		require.True(t, indexed)
	}

	results, err := ix.Fuser().Search(ctx, search.Query{
		Vector:  "trip to Paris",
		Keyword: "paris june",
		Filters: search.Filters{Category: "resources", Subcategory: "travel"},
		Limit:   5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, trip.UUID, results[0].DocumentUUID)
	assert.Equal(t, 1, results[0].VectorRank)
	assert.Equal(t, 1, results[0].KeywordRank)
}

func TestIndexerDeleteRemovesFromBoth(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndexer(t)

	doc := memoryDoc(t, "Paris in June", "resources", "travel")
	_, err := ix.IndexDocument(ctx, doc)
	require.NoError(t, err)

	require.NoError(t, ix.DeleteDocument(ctx, doc.UUID))

	vhits, err := ix.vector.SearchSimilar(ctx, "Paris", search.Filters{}, 5)
	require.NoError(t, err)
	assert.Empty(t, vhits)

	khits, err := ix.keyword.Search(ctx, "Paris", search.Filters{}, 5)
	require.NoError(t, err)
	assert.Empty(t, khits)
}

func TestMemoryKeywordIndexRanking(t *testing.T) {
	ctx := context.Background()
	k := NewMemoryKeywordIndex()

	one := document.New("the weather in Paris", document.Metadata{})
	two := document.New("Paris weather report for June", document.Metadata{})
	require.NoError(t, k.Index(ctx, one))
	require.NoError(t, k.Index(ctx, two))

	hits, err := k.Search(ctx, "Paris weather June?", search.Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, two.UUID, hits[0].DocumentUUID)
	assert.Equal(t, 3.0, hits[0].Score)

	hits, err = k.Search(ctx, "Paris", search.Filters{Role: "memory"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = k.Search(ctx, "Paris", search.Filters{ContentType: string(document.ContentImage)}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, map[string]struct{}{"where": {}, "going": {}, "june": {}},
		Tokenize("Where am I going in June?"))
}

func TestPayload(t *testing.T) {
	doc := memoryDoc(t, "x", "profiles", "basic")
	doc.ConversationUUID = "c-1"
	p := Payload(doc)
	assert.Equal(t, "memory", p[search.KeyRole])
	assert.Equal(t, "text", p[search.KeyContentType])
	assert.Equal(t, "profiles", p[search.KeyCategory])
	assert.Equal(t, "basic", p[search.KeySubcategory])
	assert.Equal(t, "c-1", p[search.KeyConversationUUID])
	assert.Equal(t, document.SourceMemory, p[search.KeySource])
}
