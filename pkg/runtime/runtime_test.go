package runtime

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojcikm/alice/pkg/agent"
	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/llm"
	"github.com/wojcikm/alice/pkg/memory"
	"github.com/wojcikm/alice/pkg/observability"
	"github.com/wojcikm/alice/pkg/tool"
	"github.com/wojcikm/alice/pkg/vector"
)

func testConfig(t *testing.T, keyword string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", Database: filepath.Join(dir, "alice.db")},
		LLM:      config.LLMConfig{Provider: config.LLMProviderOpenAI, APIKey: "test-key"},
		Vector:   vector.ProviderConfig{Type: vector.ProviderChromem, Chromem: &vector.ChromemConfig{}},
		Keyword:  config.KeywordConfig{Backend: keyword},
		Agent:    config.AgentConfig{FastTrack: true},
	}
}

func newRuntime(t *testing.T, cfg *config.Config, client llm.Client) *Runtime {
	t.Helper()
	rt, err := New(context.Background(), Options{
		Config:        cfg,
		LLM:           client,
		Observability: observability.Noop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "elastic")
	_, err := New(context.Background(), Options{Config: cfg, LLM: llm.NewScripted()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyword")
}

func TestNewRegistersBuiltinTools(t *testing.T) {
	for _, backend := range []string{"memory", "sql"} {
		t.Run(backend, func(t *testing.T) {
			rt := newRuntime(t, testConfig(t, backend), llm.NewScripted())

			var names []string
			for _, tl := range rt.Tools().List() {
				names = append(names, tl.Name())
			}
			assert.ElementsMatch(t, []string{"memory", "documents", "final_answer"}, names)
			assert.NotNil(t, rt.Agent())
			assert.NotNil(t, rt.Store())
			assert.Equal(t, backend, rt.Config().Keyword.Backend)
		})
	}
}

func TestRuntimeAnswersOnFastTrack(t *testing.T) {
	scripted := llm.NewScripted().
		On(agent.CallFastTrack, `{"_thinking": "small talk", "result": false}`).
		On(agent.CallAnswer, "Hi Adam!")
	rt := newRuntime(t, testConfig(t, "memory"), scripted)

	resp, err := rt.Agent().Run(context.Background(), agent.Request{
		User:     agent.User{Name: "Adam"},
		Messages: []llm.Message{llm.User("Hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Adam!", resp.Answer)
	assert.NotEmpty(t, resp.ConversationUUID)

	msgs, err := rt.Store().ListMessages(context.Background(), resp.ConversationUUID, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestIngestedFilesAreSearchable(t *testing.T) {
	rt := newRuntime(t, testConfig(t, "sql"), llm.NewScripted())
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("The lighthouse keeper feeds the gulls every morning."), 0o644))

	docs, err := rt.Ingester().Ingest(ctx, path, "")
	require.NoError(t, err)
	require.NotEmpty(t, docs)

	payload, err := json.Marshal(map[string]any{"query": "lighthouse gulls"})
	require.NoError(t, err)
	out, err := rt.Tools().Execute(ctx, "documents", tool.Call{Action: "search", Payload: payload})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "lighthouse keeper")
}

func TestMemoryIsSharedWithTheStore(t *testing.T) {
	rt := newRuntime(t, testConfig(t, "memory"), llm.NewScripted())
	ctx := context.Background()

	rec, err := rt.Memory().Remember(ctx, memory.RememberRequest{
		Name:        "trip",
		Text:        "Paris in June",
		Category:    "resources",
		Subcategory: "travel",
	})
	require.NoError(t, err)

	list, err := rt.Memory().List(ctx, "resources", "travel", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.UUID, list[0].UUID)
}

func TestCloseIsIdempotent(t *testing.T) {
	rt, err := New(context.Background(), Options{
		Config:        testConfig(t, "memory"),
		LLM:           llm.NewScripted(),
		Observability: observability.Noop(),
	})
	require.NoError(t, err)
	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
}
