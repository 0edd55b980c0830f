// Copyright 2026 The Alice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wojcikm/alice/pkg/errs"
)

// Event describes one committed update.
type Event struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
	At    time.Time       `json:"at"`
}

// Update is one path scoped write. Value is merged into objects and
// replaces everything else.
type Update struct {
	Path  string
	Value any
}

// Patch is a partial object merged at a path.
type Patch map[string]any

// Manager owns the snapshot of one turn. It is not meant to be shared
// between turns.
type Manager struct {
	mu      sync.Mutex
	tree    []byte
	history []Event
	subs    map[int]func(Event)
	nextSub int
	now     func() time.Time
}

// NewManager validates initial and makes it the first snapshot.
func NewManager(initial State) (*Manager, error) {
	if err := initial.Validate(); err != nil {
		return nil, &InvalidStateError{Err: err}
	}
	tree, err := json.Marshal(initial)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return &Manager{
		tree: tree,
		subs: make(map[int]func(Event)),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Get returns a deep copy of the current snapshot.
func (m *Manager) Get() State {
	m.mu.Lock()
	tree := m.tree
	m.mu.Unlock()

	var s State
	if err := json.Unmarshal(tree, &s); err != nil {
		panic(fmt.Sprintf("state: committed snapshot does not decode: %v", err))
	}
	return s
}

// Raw returns the committed JSON tree.
func (m *Manager) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.tree)
}

// Update writes value at path and commits only if the whole resulting
// snapshot is valid.
func (m *Manager) Update(path string, value any) error {
	return m.Transaction(Update{Path: path, Value: value})
}

func (m *Manager) UpdateConfig(p Patch) error      { return m.Update(PathConfig, p) }
func (m *Manager) UpdateThoughts(p Patch) error    { return m.Update(PathThoughts, p) }
func (m *Manager) UpdateProfile(p Patch) error     { return m.Update(PathProfile, p) }
func (m *Manager) UpdateInteraction(p Patch) error { return m.Update(PathInteraction, p) }
func (m *Manager) UpdateSession(p Patch) error     { return m.Update(PathSession, p) }

// Transaction applies updates in order against a working copy. Each
// intermediate snapshot is validated. Nothing is committed and no event is
// emitted unless every update succeeds.
func (m *Manager) Transaction(updates ...Update) error {
	m.mu.Lock()
	base := m.tree
	m.mu.Unlock()

	working := base
	events := make([]Event, 0, len(updates))
	for _, u := range updates {
		next, err := WithPath(working, u.Path, u.Value)
		if err != nil {
			return &InvalidStateError{
				Path: u.Path,
				Err:  errs.NewValidationError(u.Path, "cannot apply update", err),
			}
		}
		if err := validate(next); err != nil {
			return &InvalidStateError{Path: u.Path, Diff: Diff(base, next), Err: err}
		}
		raw, _ := json.Marshal(u.Value)
		events = append(events, Event{Path: u.Path, Value: raw, At: m.now()})
		working = next
	}

	m.mu.Lock()
	if !bytes.Equal(m.tree, base) {
		m.mu.Unlock()
		return fmt.Errorf("state changed during transaction")
	}
	m.tree = working
	m.history = append(m.history, events...)
	subs := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, e := range events {
		slog.Debug("State updated", "path", e.Path)
		for _, fn := range subs {
			fn(e)
		}
	}
	return nil
}

// Subscribe registers fn for every committed update. The returned function
// removes it.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// History returns every committed event, oldest first.
func (m *Manager) History() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.history...)
}

// validate decodes tree strictly, so unknown keys and mistyped values are
// rejected, and then checks the snapshot invariants.
func validate(tree []byte) error {
	dec := json.NewDecoder(bytes.NewReader(tree))
	dec.DisallowUnknownFields()
	var s State
	if err := dec.Decode(&s); err != nil {
		return errs.NewValidationError("state", "does not match the state schema", err)
	}
	return s.Validate()
}
