package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/store"
)

func TestWithPath(t *testing.T) {
	base := []byte(`{"config":{"step":1,"model":"a"},"tags":["x"]}`)

	tests := []struct {
		name  string
		path  string
		value any
		want  string
	}{
		{"scalar", "config.step", 2, `{"config":{"step":2,"model":"a"},"tags":["x"]}`},
		{"merge object", "config", map[string]any{"model": "b"}, `{"config":{"step":1,"model":"b"},"tags":["x"]}`},
		{"replace array", "tags", []string{"y", "z"}, `{"config":{"step":1,"model":"a"},"tags":["y","z"]}`},
		{"new key", "config.fast_track", true, `{"config":{"step":1,"model":"a","fast_track":true},"tags":["x"]}`},
		{"root merge", "", map[string]any{"extra": 1}, `{"config":{"step":1,"model":"a"},"tags":["x"],"extra":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithPath(base, tt.path, tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}

	assert.JSONEq(t, `{"config":{"step":1,"model":"a"},"tags":["x"]}`, string(base))

	_, err := WithPath(base, "", 3)
	assert.Error(t, err)
}

func TestDiff(t *testing.T) {
	changes := Diff(
		[]byte(`{"a":{"b":1,"c":[1]},"d":"x"}`),
		[]byte(`{"a":{"b":2,"c":[1]},"e":true}`),
	)
	byPath := map[string]Change{}
	for _, c := range changes {
		byPath[c.Path] = c
	}
	require.Len(t, changes, 3)
	assert.Equal(t, float64(2), byPath["a.b"].New)
	assert.Equal(t, "x", byPath["d"].Old)
	assert.Nil(t, byPath["d"].New)
	assert.Equal(t, true, byPath["e"].New)
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(New("conv-1"))
	require.NoError(t, err)
	return m
}

func TestManagerUpdateAndEvents(t *testing.T) {
	m := newManager(t)

	var seen []Event
	unsubscribe := m.Subscribe(func(e Event) { seen = append(seen, e) })

	require.NoError(t, m.UpdateConfig(Patch{"step": 1, "model": "gpt-4o-mini"}))
	require.NoError(t, m.UpdateThoughts(Patch{"environment": "sunny"}))

	s := m.Get()
	assert.Equal(t, 1, s.Config.Step)
	assert.Equal(t, DefaultMaxSteps, s.Config.MaxSteps)
	assert.Equal(t, "conv-1", s.Config.ConversationUUID)
	assert.Equal(t, "sunny", s.Thoughts.Environment)

	require.Len(t, seen, 2)
	assert.Equal(t, PathConfig, seen[0].Path)
	assert.JSONEq(t, `{"step":1,"model":"gpt-4o-mini"}`, string(seen[0].Value))

	unsubscribe()
	require.NoError(t, m.Update("config.step", 2))
	assert.Len(t, seen, 2)
	assert.Len(t, m.History(), 3)
}

func TestManagerGetReturnsCopy(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.UpdateProfile(Patch{"environment": map[string]string{"city": "Krakow"}}))

	s := m.Get()
	s.Profile.Environment["city"] = "Warsaw"
	s.Config.Step = 9

	again := m.Get()
	assert.Equal(t, "Krakow", again.Profile.Environment["city"])
	assert.Equal(t, 0, again.Config.Step)
}

func TestManagerRejectsInvalidSnapshot(t *testing.T) {
	m := newManager(t)
	before := m.Raw()

	var seen int
	m.Subscribe(func(Event) { seen++ })

	tests := []struct {
		name  string
		path  string
		value any
	}{
		{"step beyond max", "config.step", 11},
		{"unknown key", "config.colour", "red"},
		{"wrong type", "config.step", "two"},
		{"unknown task kind", "interaction.tasks", []*store.Task{{UUID: "t1", Kind: "side", Status: store.TaskPending}}},
		{"current task outside plan", "config.current_task", "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Update(tt.path, tt.value)
			require.Error(t, err)

			var invalid *InvalidStateError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.path, invalid.Path)
			assert.NotEmpty(t, invalid.Diff)
			assert.True(t, errs.IsValidation(err))
		})
	}

	assert.JSONEq(t, string(before), string(m.Raw()))
	assert.Zero(t, seen)
	assert.Empty(t, m.History())
}

func TestTransactionRollsBack(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Update("config.step", 1))

	err := m.Transaction(
		Update{Path: "config.step", Value: 2},
		Update{Path: "thoughts.context", Value: "half done"},
		Update{Path: "config.max_steps", Value: 0},
	)
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "config.max_steps", invalid.Path)

	s := m.Get()
	assert.Equal(t, 1, s.Config.Step)
	assert.Empty(t, s.Thoughts.Context)
	assert.Len(t, m.History(), 1)

	require.NoError(t, m.Transaction(
		Update{Path: "config.step", Value: 2},
		Update{Path: "thoughts.context", Value: "done"},
	))
	s = m.Get()
	assert.Equal(t, 2, s.Config.Step)
	assert.Equal(t, "done", s.Thoughts.Context)
	assert.Len(t, m.History(), 3)
}

func TestPlanMustEndWithFinalTask(t *testing.T) {
	m := newManager(t)

	final := &store.Task{UUID: "f", Name: "final_answer", Kind: store.TaskFinal, Status: store.TaskPending}
	regular := &store.Task{UUID: "r", Name: "search", Kind: store.TaskRegular, Status: store.TaskPending}

	err := m.UpdateInteraction(Patch{"tasks": []*store.Task{final, regular}})
	require.Error(t, err)

	require.NoError(t, m.UpdateInteraction(Patch{"tasks": []*store.Task{regular, final}}))
	require.NoError(t, m.UpdateConfig(Patch{"current_task": "r"}))

	s := m.Get()
	require.Len(t, s.Interaction.Tasks, 2)
	assert.Equal(t, "search", s.Task("r").Name)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"current_task":"r"`)
}

func TestPlanKeepsFinalTasksOfEarlierTurns(t *testing.T) {
	m := newManager(t)

	done := &store.Task{UUID: "f1", Name: "final_answer", Kind: store.TaskFinal, Status: store.TaskCompleted}
	regular := &store.Task{UUID: "r", Name: "search", Kind: store.TaskRegular, Status: store.TaskPending}
	pending := &store.Task{UUID: "f2", Name: "final_answer", Kind: store.TaskFinal, Status: store.TaskPending}

	require.NoError(t, m.UpdateInteraction(Patch{"tasks": []*store.Task{done, regular, pending}}))

	second := &store.Task{UUID: "f3", Name: "final_answer", Kind: store.TaskFinal, Status: store.TaskPending}
	err := m.UpdateInteraction(Patch{"tasks": []*store.Task{done, pending, regular, second}})
	require.Error(t, err)
	assert.Len(t, m.Get().Interaction.Tasks, 3)
}
