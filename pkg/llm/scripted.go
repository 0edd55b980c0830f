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

package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/wojcikm/alice/pkg/errs"
)

// Scripted is an in-process Client that answers by request name. Queued
// replies are consumed in order and the last one repeats.
type Scripted struct {
	mu       sync.Mutex
	model    string
	replies  map[string][]string
	handlers map[string]func(Request) (string, error)
	calls    []Request
}

func NewScripted() *Scripted {
	return &Scripted{
		model:    "scripted",
		replies:  make(map[string][]string),
		handlers: make(map[string]func(Request) (string, error)),
	}
}

// On queues replies for requests named name.
func (s *Scripted) On(name string, replies ...string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[name] = append(s.replies[name], replies...)
	return s
}

// OnFunc answers requests named name with fn. It wins over queued replies.
func (s *Scripted) OnFunc(name string, fn func(Request) (string, error)) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = fn
	return s
}

// Calls returns how many requests named name were made.
func (s *Scripted) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.calls {
		if r.Name == name {
			n++
		}
	}
	return n
}

// Requests returns a copy of every request made so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

func (s *Scripted) Model() string { return s.model }

func (s *Scripted) Text(_ context.Context, req Request) (string, error) {
	return s.reply(req)
}

func (s *Scripted) JSON(_ context.Context, req Request, _ map[string]any) (string, error) {
	return s.reply(req)
}

func (s *Scripted) Stream(_ context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text, err := s.reply(req)
		if err != nil {
			yield("", err)
			return
		}
		for _, part := range strings.SplitAfter(text, " ") {
			if part == "" {
				continue
			}
			if !yield(part, nil) {
				return
			}
		}
	}
}

func (s *Scripted) reply(req Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	fn := s.handlers[req.Name]
	queue := s.replies[req.Name]
	var (
		text string
		ok   bool
	)
	if fn == nil && len(queue) > 0 {
		text, ok = queue[0], true
		if len(queue) > 1 {
			s.replies[req.Name] = queue[1:]
		}
	}
	s.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	if !ok {
		return "", errs.NewCompletionError(s.model, req.Name, fmt.Errorf("no scripted reply"))
	}
	return text, nil
}

var _ Client = (*Scripted)(nil)
