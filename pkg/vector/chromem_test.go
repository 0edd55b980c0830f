package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromemProvider_SearchWithFilter(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Upsert(ctx, "docs", "a", []float32{1, 0, 0}, map[string]any{"category": "resources", "content": "paris"}))
	require.NoError(t, p.Upsert(ctx, "docs", "b", []float32{0.9, 0.1, 0}, map[string]any{"category": "profiles"}))
	require.NoError(t, p.Upsert(ctx, "docs", "c", []float32{0, 1, 0}, map[string]any{"category": "resources"}))

	results, err := p.Search(ctx, "docs", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "paris", results[0].Content)

	filtered, err := p.SearchWithFilter(ctx, "docs", []float32{1, 0, 0}, 10, map[string]any{"category": "resources"})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "a", filtered[0].ID)
	assert.Equal(t, "c", filtered[1].ID)
}

func TestChromemProvider_Delete(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)

	require.NoError(t, p.Upsert(ctx, "docs", "a", []float32{1, 0}, map[string]any{"source": "memory"}))
	require.NoError(t, p.Upsert(ctx, "docs", "b", []float32{0, 1}, map[string]any{"source": "file"}))

	require.NoError(t, p.Delete(ctx, "docs", "a"))
	results, err := p.Search(ctx, "docs", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)

	require.NoError(t, p.DeleteByFilter(ctx, "docs", map[string]any{"source": "file"}))
	results, err = p.Search(ctx, "docs", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemProvider_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p, err := NewChromemProvider(ChromemConfig{PersistPath: dir})
	require.NoError(t, err)
	require.NoError(t, p.Upsert(ctx, "docs", "a", []float32{1, 0}, nil))
	require.NoError(t, p.Close())

	reopened, err := NewChromemProvider(ChromemConfig{PersistPath: dir})
	require.NoError(t, err)
	results, err := reopened.Search(ctx, "docs", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestProviderConfig(t *testing.T) {
	cfg := &ProviderConfig{}
	cfg.SetDefaults()
	assert.Equal(t, ProviderChromem, cfg.Type)
	assert.Equal(t, "documents", cfg.Collection)
	require.NoError(t, cfg.Validate())

	require.Error(t, (&ProviderConfig{Type: ProviderQdrant}).Validate())
	require.Error(t, (&ProviderConfig{Type: "milvus"}).Validate())

	p, err := NewProvider(nil)
	require.NoError(t, err)
	assert.Equal(t, "nil", p.Name())
}
