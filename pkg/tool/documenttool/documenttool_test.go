package documenttool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojcikm/alice/pkg/chunker"
	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/embedders"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/index"
	"github.com/wojcikm/alice/pkg/store"
	"github.com/wojcikm/alice/pkg/tool"
	"github.com/wojcikm/alice/pkg/utils"
	"github.com/wojcikm/alice/pkg/vector"
)

func newTestTool(t *testing.T) (*Tool, *store.Store) {
	t.Helper()
	ctx := context.Background()

	pool := config.NewDBPool()
	t.Cleanup(func() { _ = pool.Close() })
	db, err := pool.Get(ctx, &config.DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "alice.db")})
	require.NoError(t, err)
	st, err := store.New(ctx, db, "sqlite")
	require.NoError(t, err)

	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })
	vi, err := index.NewVectorIndex(ctx, provider, embedders.NewHashEmbedder(256), "")
	require.NoError(t, err)
	ix := index.NewIndexer(vi, store.NewKeywordIndex(st))

	counter, err := utils.NewTokenCounter("cl100k_base")
	require.NoError(t, err)

	ingester := NewIngester(st, ix, chunker.New(counter), 200)
	return New(ingester, st, ix.Fuser()), st
}

func payload(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}

func TestLoadAndSearch(t *testing.T) {
	ctx := context.Background()
	dt, st := newTestTool(t)

	path := filepath.Join(t.TempDir(), "packing.md")
	require.NoError(t, os.WriteFile(path, []byte("# Packing\nBring the passport and a travel adapter."), 0o644))

	doc, err := dt.Execute(ctx, tool.Call{Action: "load", Payload: payload(map[string]string{"path": path})})
	require.NoError(t, err)
	assert.Equal(t, "Loaded packing.md into 1 chunks.", doc.Text)

	// loading again replaces the earlier chunks
	_, err = dt.Execute(ctx, tool.Call{Action: "load", Payload: payload(map[string]string{"path": path})})
	require.NoError(t, err)
	stored, err := st.ListDocumentsBySource(ctx, SourceUUID(path))
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	doc, err = dt.Execute(ctx, tool.Call{Action: "search", Payload: payload(map[string]any{"query": "passport"})})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.Text, "Found 1 matching fragments:"))
	assert.Contains(t, doc.Text, `name="packing.md"`)
	assert.Contains(t, doc.Text, "travel adapter")
}

func TestSearchWithoutDocuments(t *testing.T) {
	dt, _ := newTestTool(t)
	doc, err := dt.Execute(context.Background(), tool.Call{Action: "search", Payload: payload(map[string]any{"query": "passport"})})
	require.NoError(t, err)
	assert.Equal(t, "No matching documents found.", doc.Text)
}

func TestDocumentToolErrors(t *testing.T) {
	dt, _ := newTestTool(t)
	ctx := context.Background()

	_, err := dt.Execute(ctx, tool.Call{Action: "load", Payload: payload(map[string]string{"path": "/nope/missing.txt"})})
	assert.True(t, errs.IsNotFound(err))

	_, err = dt.Execute(ctx, tool.Call{Action: "load", Payload: payload(map[string]string{})})
	assert.True(t, errs.IsValidation(err))

	_, err = dt.Execute(ctx, tool.Call{Action: "search", Payload: payload(map[string]any{"query": "x", "limit": 51})})
	assert.True(t, errs.IsValidation(err))

	_, err = dt.Execute(ctx, tool.Call{Action: "delete"})
	assert.True(t, errs.IsValidation(err))
}
