package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/embedders"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/index"
	"github.com/wojcikm/alice/pkg/llm"
	"github.com/wojcikm/alice/pkg/memory"
	"github.com/wojcikm/alice/pkg/observability"
	"github.com/wojcikm/alice/pkg/state"
	"github.com/wojcikm/alice/pkg/store"
	"github.com/wojcikm/alice/pkg/task"
	"github.com/wojcikm/alice/pkg/tool"
	"github.com/wojcikm/alice/pkg/tool/memorytool"
	"github.com/wojcikm/alice/pkg/vector"
)

const (
	nothing    = `{"_thinking": "nothing relevant", "result": null}`
	noQueries  = `{"_thinking": "nothing to ask", "result": []}`
	emptyPlan  = `{"_thinking": "plan is fine", "result": []}`
	finalNext  = `{"_thinking": "done", "result": {"name": "reply", "tool_name": "final_answer", "task_uuid": "unknown"}}`
	travelSelf = `{"_thinking": "trips", "queries": [{"category": "resources", "subcategory": "travel", "question": "Where is the user going in June?", "query": "Paris June"}]}`
)

type fixture struct {
	store  *store.Store
	tasks  *task.Service
	tools  *tool.Registry
	llm    *llm.Scripted
	tracer *observability.Tracer
	spans  *tracetest.SpanRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	pool := config.NewDBPool()
	t.Cleanup(func() { _ = pool.Close() })
	db, err := pool.Get(ctx, &config.DatabaseConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "alice.db"),
	})
	require.NoError(t, err)
	st, err := store.New(ctx, db, "sqlite")
	require.NoError(t, err)

	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })
	vi, err := index.NewVectorIndex(ctx, provider, embedders.NewHashEmbedder(256), "")
	require.NoError(t, err)
	ix := index.NewIndexer(vi, store.NewKeywordIndex(st))

	scripted := llm.NewScripted()
	memories, err := memory.NewService(memory.Options{Store: st, Indexer: ix, LLM: scripted})
	require.NoError(t, err)

	spans := tracetest.NewSpanRecorder()
	tracer := observability.NewTracer(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))

	registry := tool.NewRegistry(tool.WithTracer(tracer))
	require.NoError(t, registry.Register(memorytool.New(memories, "Alice"), tool.NewFinalAnswer()))

	scripted.
		On(CallEnvironment, nothing).
		On(CallContext, `{"_thinking": "a new chat", "result": "I don't know much about the user yet."}`).
		On(CallDraftTools, noQueries).
		On(CallDraftMemory, noQueries)

	return &fixture{
		store:  st,
		tasks:  task.NewService(st),
		tools:  registry,
		llm:    scripted,
		tracer: tracer,
		spans:  spans,
	}
}

func (f *fixture) agent(t *testing.T, cfg config.AgentConfig) *Agent {
	t.Helper()
	a, err := New(Options{
		Store:  f.store,
		Tasks:  f.tasks,
		Tools:  f.tools,
		LLM:    f.llm,
		Config: cfg,
		Tracer: f.tracer,
	})
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	return a
}

func ask(text string) Request {
	return Request{
		User:     User{UUID: "user-1", Name: "Adam"},
		Messages: []llm.Message{llm.User(text)},
	}
}

func lastUserMessage(req llm.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

func actionsOf(tasks []*store.Task) []*store.Action {
	var out []*store.Action
	for _, t := range tasks {
		out = append(out, t.Actions...)
	}
	return out
}

func TestRunStopsAtMaxSteps(t *testing.T) {
	f := newFixture(t)

	var plans atomic.Int32
	f.llm.
		OnFunc(CallPlan, func(llm.Request) (string, error) {
			n := plans.Add(1)
			return fmt.Sprintf(`{"_thinking": "one more lookup", "result": [{"uuid": null, "name": "lookup_%d", "description": "Look something up", "status": "pending"}]}`, n), nil
		}).
		On(CallNext, `{"_thinking": "keep going", "result": {"name": "look", "tool_name": "memory", "task_uuid": "no-such-task"}}`).
		On(CallUse, `{"_thinking": "try", "result": {"action": "dance", "payload": {}}}`).
		On(CallAnswer, "I could not find anything.")

	a := f.agent(t, config.AgentConfig{MaxSteps: 3})
	resp, err := a.Run(context.Background(), ask("Find something for me"))
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Steps)
	assert.Equal(t, "I could not find anything.", resp.Answer)
	assert.Equal(t, 3, f.llm.Calls(CallPlan))
	assert.Equal(t, 3, f.llm.Calls(CallNext))
	assert.Equal(t, 3, f.llm.Calls(CallUse))
	assert.Equal(t, 1, f.llm.Calls(CallAnswer))

	actions := actionsOf(resp.Tasks)
	require.Len(t, actions, 3)
	for i, action := range actions {
		assert.Equal(t, store.ActionCompleted, action.Status)
		assert.Equal(t, i, action.Sequence)
		require.Len(t, action.Documents, 1)
		assert.Equal(t, "error_report", action.Documents[0].Metadata.Name)
		assert.Contains(t, action.Documents[0].Text, "dance")
	}

	require.Len(t, resp.Tasks, 4)
	final := resp.Tasks[len(resp.Tasks)-1]
	assert.Equal(t, store.TaskFinal, final.Kind)
	assert.Equal(t, store.TaskCompleted, final.Status)
	assert.Equal(t, "I could not find anything.", final.Result)
	for _, tk := range resp.Tasks[:3] {
		assert.Equal(t, store.TaskCompleted, tk.Status, tk.Name)
	}

	messages, err := f.store.ListMessages(context.Background(), resp.ConversationUUID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
}

func TestRunFastTrackSkipsTheLoop(t *testing.T) {
	f := newFixture(t)
	f.llm.
		On(CallFastTrack, `{"_thinking": "simple arithmetic", "result": false}`).
		On(CallAnswer, "Two plus two is 4.")

	var deltas []string
	req := ask("What is 2 + 2?")
	req.OnDelta = func(d string) { deltas = append(deltas, d) }

	a := f.agent(t, config.AgentConfig{FastTrack: true})
	resp, err := a.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Two plus two is 4.", resp.Answer)
	assert.Equal(t, "Two plus two is 4.", strings.Join(deltas, ""))
	assert.Greater(t, len(deltas), 1)
	assert.Zero(t, resp.Steps)
	assert.Empty(t, actionsOf(resp.Tasks))
	assert.Zero(t, f.llm.Calls(CallEnvironment))
	assert.Zero(t, f.llm.Calls(CallPlan))

	reqs := f.llm.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, CallFastTrack, reqs[0].Name)
	require.NotNil(t, reqs[0].Temperature)
	assert.Zero(t, *reqs[0].Temperature)
}

func TestRunFastTrackFallsThroughWhenToolsAreNeeded(t *testing.T) {
	f := newFixture(t)
	f.llm.
		On(CallFastTrack, `{"_thinking": "needs memory", "result": true}`).
		On(CallPlan, emptyPlan).
		On(CallNext, finalNext).
		On(CallAnswer, "Nothing stored yet.")

	a := f.agent(t, config.AgentConfig{FastTrack: true})
	resp, err := a.Run(context.Background(), ask("What did I tell you yesterday?"))
	require.NoError(t, err)

	assert.Equal(t, 1, f.llm.Calls(CallEnvironment))
	assert.Equal(t, 1, f.llm.Calls(CallContext))
	assert.Zero(t, f.llm.Calls(CallUse))
	assert.Zero(t, resp.Steps)

	require.Len(t, resp.Tasks, 1)
	final := resp.Tasks[0]
	assert.Equal(t, task.FinalAnswer, final.Name)
	assert.Equal(t, store.TaskCompleted, final.Status)
	require.Len(t, final.Actions, 1)
	assert.Equal(t, store.ActionCompleted, final.Actions[0].Status)
	assert.Equal(t, "Nothing stored yet.", final.Actions[0].Result)
}

func TestRememberThenRecallAcrossTurns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const (
		rememberMsg = "Remember that my trip is Paris in June."
		recallMsg   = "Where am I going in June?"
	)

	f.llm.
		OnFunc(CallPlan, func(req llm.Request) (string, error) {
			name := "save_trip"
			if lastUserMessage(req) == recallMsg {
				name = "find_trip"
			}
			if strings.Contains(req.Messages[0].Content, `name="`+name+`"`) {
				return emptyPlan, nil
			}
			return fmt.Sprintf(`{"_thinking": "one task", "result": [{"uuid": null, "name": %q, "description": "Use memory", "status": "pending"}, {"uuid": null, "name": "final_answer", "description": "Reply", "status": "pending"}]}`, name), nil
		}).
		OnFunc(CallNext, func(llm.Request) (string, error) {
			if f.llm.Calls(CallNext)%2 == 1 {
				return `{"_thinking": "use memory", "result": {"name": "memory_op", "tool_name": "memory", "task_uuid": "unknown"}}`, nil
			}
			return finalNext, nil
		}).
		OnFunc(CallUse, func(req llm.Request) (string, error) {
			if lastUserMessage(req) == recallMsg {
				return `{"_thinking": "recall", "result": {"action": "recall", "payload": {"query": "where am I going in June?", "limit": 5}}}`, nil
			}
			return `{"_thinking": "store it", "result": {"action": "remember", "payload": {"name": "trip", "text": "Paris in June", "category": "resources", "subcategory": "travel"}}}`, nil
		}).
		On(memory.SelfQueryOperation, travelSelf).
		On(CallAnswer, "Saved.", "You're going to Paris in June.")

	a := f.agent(t, config.AgentConfig{})

	first, err := a.Run(ctx, ask(rememberMsg))
	require.NoError(t, err)
	assert.Equal(t, "Saved.", first.Answer)
	assert.Equal(t, 1, first.Steps)

	memories, err := f.store.ListConversationMemories(ctx, first.ConversationUUID)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "trip", memories[0].Name)

	req := ask(recallMsg)
	req.ConversationUUID = first.ConversationUUID
	req.Messages = []llm.Message{llm.User(rememberMsg), llm.Assistant("Saved."), llm.User(recallMsg)}
	second, err := a.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "You're going to Paris in June.", second.Answer)

	var recall *store.Action
	for _, tk := range second.Tasks {
		if tk.Name == "find_trip" {
			require.Len(t, tk.Actions, 1)
			recall = tk.Actions[0]
			assert.Equal(t, store.TaskCompleted, tk.Status)
		}
	}
	require.NotNil(t, recall)
	assert.Contains(t, recall.Result, `<memory name="trip"`)
	assert.Contains(t, recall.Result, "Paris in June")

	finals := 0
	for _, tk := range second.Tasks {
		if tk.Kind == store.TaskFinal {
			finals++
			assert.Equal(t, store.TaskCompleted, tk.Status)
		}
	}
	assert.Equal(t, 2, finals)

	reqs := f.llm.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, CallAnswer, last.Name)
	assert.Contains(t, last.Messages[0].Content, "Paris in June")
}

func TestRunAbsorbsUnknownTool(t *testing.T) {
	f := newFixture(t)
	f.llm.
		On(CallPlan, `{"_thinking": "teleport", "result": [{"uuid": null, "name": "teleport", "description": "Go", "status": "pending"}]}`).
		On(CallNext, `{"_thinking": "go", "result": {"name": "jump", "tool_name": "teleporter", "task_uuid": "unknown"}}`).
		On(CallUse, `{"_thinking": "go", "result": {"action": "jump", "payload": null}}`).
		On(CallAnswer, "I can't teleport.")

	a := f.agent(t, config.AgentConfig{MaxSteps: 1})
	resp, err := a.Run(context.Background(), ask("Teleport me"))
	require.NoError(t, err)

	actions := actionsOf(resp.Tasks)
	require.Len(t, actions, 1)
	assert.JSONEq(t, `{}`, string(actions[0].Payload))
	assert.Contains(t, actions[0].Result, "teleporter")
	assert.Contains(t, actions[0].Result, "not found")
}

func TestFinalAnswerLandsOnTheFinalTask(t *testing.T) {
	taskUUID := regexp.MustCompile(`<task uuid="([^"]+)" name="look_up_flights"`)

	tests := []struct {
		name     string
		selected func(prompt string) string
	}{
		{"unknown task", func(string) string { return "unknown" }},
		{"regular task", func(prompt string) string {
			if m := taskUUID.FindStringSubmatch(prompt); m != nil {
				return m[1]
			}
			return "missing"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.llm.
				On(CallPlan, `{"_thinking": "flights", "result": [{"uuid": null, "name": "look_up_flights", "description": "Find flights to Paris", "status": "pending"}, {"uuid": null, "name": "final_answer", "description": "Reply", "status": "pending"}]}`).
				OnFunc(CallNext, func(req llm.Request) (string, error) {
					return fmt.Sprintf(`{"_thinking": "enough", "result": {"name": "reply", "tool_name": "final_answer", "task_uuid": %q}}`,
						tt.selected(req.Messages[0].Content)), nil
				}).
				On(CallAnswer, "I can't search flights yet.")

			a := f.agent(t, config.AgentConfig{})
			resp, err := a.Run(context.Background(), ask("Find me a flight to Paris"))
			require.NoError(t, err)
			assert.Zero(t, f.llm.Calls(CallUse))

			require.Len(t, resp.Tasks, 2)
			regular, final := resp.Tasks[0], resp.Tasks[1]

			assert.Equal(t, "look_up_flights", regular.Name)
			assert.Equal(t, store.TaskPending, regular.Status)
			assert.Empty(t, regular.Actions)
			assert.Empty(t, regular.Result)

			assert.Equal(t, store.TaskFinal, final.Kind)
			assert.Equal(t, store.TaskCompleted, final.Status)
			assert.Equal(t, "I can't search flights yet.", final.Result)
			require.Len(t, final.Actions, 1)
			assert.Equal(t, tool.FinalAnswer, final.Actions[0].Tool)
			assert.Equal(t, store.ActionCompleted, final.Actions[0].Status)
			assert.Equal(t, "I can't search flights yet.", final.Actions[0].Result)
		})
	}
}

func TestRunContinuesAfterToolFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.llm.
		OnFunc(CallPlan, func(llm.Request) (string, error) {
			switch f.llm.Calls(CallPlan) {
			case 1:
				return `{"_thinking": "store it", "result": [{"uuid": null, "name": "save_trip", "description": "Remember the trip", "status": "pending"}, {"uuid": null, "name": "final_answer", "description": "Confirm", "status": "pending"}]}`, nil
			case 2:
				return `{"_thinking": "wrong category, retry", "result": [{"uuid": null, "name": "retry_trip", "description": "Remember the trip under resources/travel", "status": "pending"}]}`, nil
			default:
				return emptyPlan, nil
			}
		}).
		OnFunc(CallNext, func(llm.Request) (string, error) {
			if f.llm.Calls(CallNext) <= 2 {
				return `{"_thinking": "use memory", "result": {"name": "save", "tool_name": "memory", "task_uuid": "unknown"}}`, nil
			}
			return finalNext, nil
		}).
		OnFunc(CallUse, func(llm.Request) (string, error) {
			if f.llm.Calls(CallUse) == 1 {
				return `{"_thinking": "store it", "result": {"action": "remember", "payload": {"name": "trip", "text": "Paris in June", "category": "hobbies", "subcategory": "chess"}}}`, nil
			}
			return `{"_thinking": "store it", "result": {"action": "remember", "payload": {"name": "trip", "text": "Paris in June", "category": "resources", "subcategory": "travel"}}}`, nil
		}).
		On(CallAnswer, "Saved your trip.")

	a := f.agent(t, config.AgentConfig{MaxSteps: 5})
	resp, err := a.Run(ctx, ask("Remember that my trip is Paris in June."))
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Steps)
	assert.Equal(t, 3, f.llm.Calls(CallPlan))
	assert.Equal(t, 3, f.llm.Calls(CallNext))
	assert.Equal(t, "Saved your trip.", resp.Answer)

	byName := map[string]*store.Task{}
	for _, tk := range resp.Tasks {
		byName[tk.Name] = tk
	}

	failed := byName["save_trip"]
	require.NotNil(t, failed)
	assert.Equal(t, store.TaskCompleted, failed.Status)
	require.Len(t, failed.Actions, 1)
	assert.Equal(t, store.ActionCompleted, failed.Actions[0].Status)
	require.Len(t, failed.Actions[0].Documents, 1)
	assert.Equal(t, "error_report", failed.Actions[0].Documents[0].Metadata.Name)
	assert.Contains(t, failed.Actions[0].Documents[0].Text, "unknown category hobbies/chess")

	retried := byName["retry_trip"]
	require.NotNil(t, retried)
	assert.Equal(t, store.TaskCompleted, retried.Status)
	require.Len(t, retried.Actions, 1)
	assert.Equal(t, 1, retried.Actions[0].Sequence)
	assert.Contains(t, retried.Actions[0].Result, `<memory name="trip"`)

	memories, err := f.store.ListConversationMemories(ctx, resp.ConversationUUID)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "resources", memories[0].Category.Name)
}

func TestRunFailsOnCompletionError(t *testing.T) {
	f := newFixture(t)
	f.llm.OnFunc(CallEnvironment, func(req llm.Request) (string, error) {
		return "", errs.NewCompletionError("scripted", req.Name, fmt.Errorf("rate limited"))
	})

	a := f.agent(t, config.AgentConfig{})
	_, err := a.Run(context.Background(), ask("Hello"))
	require.Error(t, err)
	assert.True(t, errs.IsCompletion(err))
}

func TestRunRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t)
	a := f.agent(t, config.AgentConfig{})

	tests := []struct {
		name string
		req  Request
	}{
		{"no messages", Request{}},
		{"assistant last", Request{Messages: []llm.Message{llm.User("hi"), llm.Assistant("hello")}}},
		{"blank message", Request{Messages: []llm.Message{llm.User("  ")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))
		})
	}
	assert.Empty(t, f.llm.Requests())
}

func TestRunRecordsStateEvents(t *testing.T) {
	f := newFixture(t)
	f.llm.
		On(CallPlan, emptyPlan).
		On(CallNext, finalNext).
		On(CallAnswer, "Hi Adam.")

	a := f.agent(t, config.AgentConfig{})
	_, err := a.Run(context.Background(), ask("Hi"))
	require.NoError(t, err)

	var paths []string
	phases := map[string]bool{}
	for _, span := range f.spans.Ended() {
		switch {
		case span.Name() == observability.SpanTurn:
			for _, e := range span.Events() {
				if e.Name != observability.EventStateChange {
					continue
				}
				for _, attr := range e.Attributes {
					if string(attr.Key) == observability.AttrStatePath {
						paths = append(paths, attr.Value.AsString())
					}
				}
			}
		case strings.HasPrefix(span.Name(), observability.SpanPhase+"."):
			phases[strings.TrimPrefix(span.Name(), observability.SpanPhase+".")] = true
		}
	}
	assert.Contains(t, paths, state.PathThoughts)
	assert.Contains(t, paths, state.PathInteraction)
	for _, phase := range []string{"observe", "draft", CallPlan, CallNext, CallAnswer} {
		assert.True(t, phases[phase], phase)
	}
}

func TestPromptsRender(t *testing.T) {
	s := state.New("conv-1")
	s.Profile = state.Profile{AIName: "Alice", UserName: "Adam", Environment: map[string]string{"location": "Krakow"}}
	s.Session.Tools = []state.ToolInfo{{Name: "memory", Description: "Long-term memory", Instruction: "recall or remember"}}
	s.Session.Categories = []store.Category{{Name: "resources", Subcategory: "travel", Description: "Trips"}}
	s.Interaction.Tasks = []*store.Task{{
		UUID: "t1", Name: "save_trip", Kind: store.TaskRegular, Status: store.TaskPending,
		Actions: []*store.Action{{UUID: "a1", Name: "store", Tool: "memory", Status: store.ActionPending, Payload: []byte(`{"name":"trip"}`)}},
	}}
	s.Config.CurrentTask = "t1"
	s.Config.CurrentAction = "a1"
	s.Config.CurrentTool = "memory"

	tr := &turn{agent: &Agent{now: time.Now}}
	data := tr.data(s)
	require.NotNil(t, data.CurrentAction)
	assert.Equal(t, "memory", data.SelectedTool.Name)

	for _, name := range []string{CallFastTrack, CallEnvironment, CallContext, CallDraftTools, CallDraftMemory, CallPlan, CallNext, CallUse, CallAnswer} {
		t.Run(name, func(t *testing.T) {
			out, err := render(name, data)
			require.NoError(t, err)
			assert.Contains(t, out, "Adam")
		})
	}

	out, err := render(CallUse, data)
	require.NoError(t, err)
	assert.Contains(t, out, "performing task save_trip")
	assert.Contains(t, out, "instruction: recall or remember")
	assert.Contains(t, out, `<payload>{"name":"trip"}</payload>`)

	out, err = render(CallEnvironment, data)
	require.NoError(t, err)
	assert.Contains(t, out, "location: Krakow")
}
