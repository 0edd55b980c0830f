package memorytool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/memory"
	"github.com/wojcikm/alice/pkg/store"
	"github.com/wojcikm/alice/pkg/tool"
)

type fakeMemories struct {
	recalls   []memory.RecallRequest
	remembers []memory.RememberRequest
	forgotten []string
}

func (f *fakeMemories) Recall(_ context.Context, req memory.RecallRequest) (*memory.Recollection, error) {
	f.recalls = append(f.recalls, req)
	return &memory.Recollection{Document: document.New("No relevant memories found.", document.Metadata{})}, nil
}

func (f *fakeMemories) Remember(_ context.Context, req memory.RememberRequest) (*store.MemoryRecord, error) {
	f.remembers = append(f.remembers, req)
	if req.Category == "hobbies" {
		return nil, errs.NewValidationError("category", "unknown category hobbies/"+req.Subcategory, nil)
	}
	return &store.MemoryRecord{
		Memory:   store.Memory{UUID: "m-1", Name: req.Name},
		Document: document.New(req.Text, document.Metadata{}),
	}, nil
}

func (f *fakeMemories) Update(_ context.Context, req memory.UpdateRequest) (*store.MemoryRecord, error) {
	return &store.MemoryRecord{Memory: store.Memory{UUID: req.MemoryUUID, Name: "trip"}}, nil
}

func (f *fakeMemories) Forget(_ context.Context, id string) (*store.MemoryRecord, error) {
	f.forgotten = append(f.forgotten, id)
	return &store.MemoryRecord{Memory: store.Memory{UUID: id, Name: "trip"}}, nil
}

func (f *fakeMemories) RecentContext(_ context.Context, conv string) (*document.Document, error) {
	return document.New(`<category name="resources" subcategory="travel"/>`, document.Metadata{Name: "RecentMemoryCategories"}), nil
}

func call(action, payload string) tool.Call {
	return tool.Call{Action: action, Payload: json.RawMessage(payload), ConversationUUID: "conv-1"}
}

func TestMemoryToolActions(t *testing.T) {
	ctx := context.Background()
	fake := &fakeMemories{}
	mt := New(fake, "Alice")

	doc, err := mt.Execute(ctx, call("remember", `{"name":"trip","text":"Paris in June","category":"resources","subcategory":"travel"}`))
	require.NoError(t, err)
	assert.Equal(t, `<memory name="trip" memory-uuid="m-1">Paris in June</memory>`, doc.Text)
	require.Len(t, fake.remembers, 1)
	assert.Equal(t, "conv-1", fake.remembers[0].ConversationUUID)

	_, err = mt.Execute(ctx, call("recall", `{"query":"june plans"}`))
	require.NoError(t, err)
	require.Len(t, fake.recalls, 1)
	assert.Equal(t, memory.DefaultRecallLimit, fake.recalls[0].Limit)
	assert.Equal(t, "Alice", fake.recalls[0].AIName)

	doc, err = mt.Execute(ctx, call("update", `{"memory_uuid":"m-1","text":"Lisbon"}`))
	require.NoError(t, err)
	assert.Equal(t, "Successfully updated memory: trip", doc.Text)

	doc, err = mt.Execute(ctx, call("forget", `{"memory_uuid":"m-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "Successfully deleted memory: trip", doc.Text)
	assert.Equal(t, []string{"m-1"}, fake.forgotten)

	doc, err = mt.Context(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "RecentMemoryCategories", doc.Metadata.Name)
}

func TestMemoryToolRejectsBadPayloads(t *testing.T) {
	mt := New(&fakeMemories{}, "Alice")

	tests := []struct {
		name    string
		action  string
		payload string
	}{
		{"unknown action", "summarize", `{}`},
		{"empty query", "recall", `{"query":" "}`},
		{"limit too high", "recall", `{"query":"x","limit":101}`},
		{"negative limit", "recall", `{"query":"x","limit":-1}`},
		{"unknown field", "recall", `{"query":"x","top_k":3}`},
		{"missing text", "remember", `{"name":"a","category":"resources","subcategory":"travel"}`},
		{"missing uuid", "forget", `{}`},
		{"unknown category", "remember", `{"name":"a","text":"b","category":"hobbies","subcategory":"chess"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mt.Execute(context.Background(), call(tt.action, tt.payload))
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))
		})
	}
}

func TestRememberReportsFirstMissingField(t *testing.T) {
	tests := []struct {
		payload rememberPayload
		field   string
	}{
		{rememberPayload{}, "name"},
		{rememberPayload{Name: "a", Category: "resources"}, "text"},
		{rememberPayload{Name: "a", Text: "b"}, "category"},
		{rememberPayload{Name: "a", Text: "b", Category: "resources", Subcategory: " "}, "subcategory"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			// Repeated to catch any dependence on iteration order.
			for range 20 {
				err := tt.payload.Validate()
				require.Error(t, err)
				assert.Equal(t, "validation failed for "+tt.field+": is required", err.Error())
			}
		})
	}
}

func TestMemoryToolThroughRegistry(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(New(&fakeMemories{}, "Alice"), tool.NewFinalAnswer()))

	_, err := reg.Execute(context.Background(), Name, call("recall", `{}`))
	require.Error(t, err)
	assert.True(t, errs.IsToolExecution(err))

	doc, err := reg.Execute(context.Background(), Name, call("recall", `{"query":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "conv-1", doc.ConversationUUID)

	_, err = reg.Execute(context.Background(), "weather", call("now", `{}`))
	assert.True(t, errs.IsNotFound(err))

	names := []string{}
	for _, tl := range reg.List() {
		names = append(names, tl.Name())
	}
	assert.Equal(t, []string{"memory", "final_answer"}, names)
}
