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

// Package agent runs one conversation turn.
//
// A turn goes through a fixed sequence of phases, each a completion over the
// current state snapshot:
//
//   - fast track: decide whether tools or memory are needed at all
//   - observe: environment and context narration, in parallel
//   - draft: tool and memory queries, in parallel
//   - loop: plan, next, use, act, bounded by max steps
//   - answer: the reply to the user
//
// The loop stops when the planner selects final_answer or when the step
// counter reaches max steps. The answer phase always runs. Tool failures
// never end the turn. They become error documents attached to the action.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/llm"
	"github.com/wojcikm/alice/pkg/observability"
	"github.com/wojcikm/alice/pkg/state"
	"github.com/wojcikm/alice/pkg/store"
	"github.com/wojcikm/alice/pkg/task"
	"github.com/wojcikm/alice/pkg/tool"
)

// historyForFastTrack is how many trailing messages the fast track
// classifier sees.
const historyForFastTrack = 3

// Options wires an Agent. Store, Tasks, Tools and LLM are required.
type Options struct {
	Store *store.Store
	Tasks *task.Service
	Tools *tool.Registry
	LLM   llm.Client

	Config config.AgentConfig

	// Model and AltModel default to the client's model. AltModel serves the
	// fast track classifier.
	Model    string
	AltModel string

	Tracer  *observability.Tracer
	Metrics observability.Metrics
}

// Agent runs turns. It is safe for concurrent use. Every turn gets its own
// state manager.
type Agent struct {
	store    *store.Store
	tasks    *task.Service
	tools    *tool.Registry
	llm      llm.Client
	cfg      config.AgentConfig
	model    string
	altModel string
	tracer   *observability.Tracer
	metrics  observability.Metrics
	now      func() time.Time
}

func New(opts Options) (*Agent, error) {
	switch {
	case opts.Store == nil:
		return nil, errs.NewValidationError("store", "is required", nil)
	case opts.Tasks == nil:
		return nil, errs.NewValidationError("tasks", "is required", nil)
	case opts.Tools == nil:
		return nil, errs.NewValidationError("tools", "is required", nil)
	case opts.LLM == nil:
		return nil, errs.NewValidationError("llm", "is required", nil)
	}

	cfg := opts.Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}

	a := &Agent{
		store:    opts.Store,
		tasks:    opts.Tasks,
		tools:    opts.Tools,
		llm:      opts.LLM,
		cfg:      cfg,
		model:    opts.Model,
		altModel: opts.AltModel,
		tracer:   opts.Tracer,
		metrics:  opts.Metrics,
		now:      time.Now,
	}
	if a.model == "" {
		a.model = opts.LLM.Model()
	}
	if a.altModel == "" {
		a.altModel = a.model
	}
	if a.tracer == nil {
		a.tracer = observability.NoopTracer()
	}
	if a.metrics == nil {
		a.metrics = observability.NoopMetrics{}
	}
	return a, nil
}

// User describes who the agent is talking to.
type User struct {
	UUID        string            `json:"uuid,omitempty"`
	Name        string            `json:"name,omitempty"`
	Context     string            `json:"context,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}

// Request is one turn. The last message must come from the user.
type Request struct {
	ConversationUUID string        `json:"conversation_uuid,omitempty"`
	User             User          `json:"user"`
	Messages         []llm.Message `json:"messages"`
	Model            string        `json:"model,omitempty"`

	// OnDelta receives the answer as it streams. Nil disables streaming.
	OnDelta func(delta string) `json:"-"`
}

// Response is the outcome of a turn.
type Response struct {
	ConversationUUID string        `json:"conversation_uuid"`
	Answer           string        `json:"answer"`
	Tasks            []*store.Task `json:"tasks"`
	Steps            int           `json:"steps"`
}

func (r Request) validate() error {
	if len(r.Messages) == 0 {
		return errs.NewValidationError("messages", "at least one message is required", nil)
	}
	last := r.Messages[len(r.Messages)-1]
	if last.Role != llm.RoleUser {
		return errs.NewValidationError("messages", "the last message must come from the user", nil)
	}
	if strings.TrimSpace(last.Content) == "" {
		return errs.NewValidationError("messages", "the last message is empty", nil)
	}
	return nil
}

// Run executes one turn and returns the answer.
func (a *Agent) Run(ctx context.Context, req Request) (resp *Response, err error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	last := req.Messages[len(req.Messages)-1]

	conv, err := a.store.GetOrCreateConversation(ctx, req.ConversationUUID, req.User.UUID, conversationName(last.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation: %w", err)
	}
	if _, err := a.store.AddMessage(ctx, conv.UUID, string(llm.RoleUser), last.Content); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	ctx, span := a.tracer.StartTurn(ctx, conv.UUID)
	defer span.End()

	t := &turn{agent: a, conversation: conv.UUID, req: req}
	defer func() {
		a.metrics.RecordTurn(ctx, time.Since(start), t.steps, err)
		if err != nil {
			observability.RecordError(span, err)
			slog.Error("Turn failed", "conversation_uuid", conv.UUID, "error", err)
		}
	}()

	slog.Info("Turn started", "conversation_uuid", conv.UUID, "messages", len(req.Messages))

	if t.state, err = a.load(ctx, conv.UUID, req); err != nil {
		return nil, err
	}
	unsubscribe := t.state.Subscribe(func(e state.Event) {
		observability.AddStateEvent(span, e.Path, e.Value, e.At)
	})
	defer unsubscribe()

	if err := t.think(ctx); err != nil {
		return nil, err
	}

	answer, err := t.answer(ctx)
	if err != nil {
		return nil, err
	}
	if err := t.finish(ctx, answer); err != nil {
		return nil, err
	}
	if _, err := a.store.AddMessage(ctx, conv.UUID, string(llm.RoleAssistant), answer); err != nil {
		return nil, fmt.Errorf("failed to store answer: %w", err)
	}

	tasks, err := a.tasks.FindByConversation(ctx, conv.UUID)
	if err != nil {
		return nil, err
	}

	slog.Info("Turn finished", "conversation_uuid", conv.UUID, "steps", t.steps,
		"duration", time.Since(start).Round(time.Millisecond))
	return &Response{
		ConversationUUID: conv.UUID,
		Answer:           answer,
		Tasks:            tasks,
		Steps:            t.steps,
	}, nil
}

// load builds the initial snapshot of a turn.
func (a *Agent) load(ctx context.Context, conversationUUID string, req Request) (*state.Manager, error) {
	categories, err := a.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	memories, err := a.store.ListConversationMemories(ctx, conversationUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memories: %w", err)
	}
	tasks, err := a.tasks.FindByConversation(ctx, conversationUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	s := state.New(conversationUUID)
	s.Config.MaxSteps = a.cfg.MaxSteps
	s.Config.Model = a.model
	if req.Model != "" {
		s.Config.Model = req.Model
	}
	s.Config.AltModel = a.altModel
	s.Config.Temperature = *a.cfg.Temperature
	s.Config.MaxTokens = a.cfg.MaxTokens
	s.Config.FastTrack = a.cfg.FastTrack

	s.Profile = state.Profile{
		AIName:      a.cfg.AIName,
		UserUUID:    req.User.UUID,
		UserName:    req.User.Name,
		Context:     req.User.Context,
		Environment: map[string]string{},
	}
	if s.Profile.UserName == "" {
		s.Profile.UserName = "User"
	}
	for k, v := range req.User.Environment {
		s.Profile.Environment[k] = v
	}

	s.Interaction.Tasks = tasks
	s.Interaction.Messages = req.Messages
	for _, t := range a.tools.List() {
		s.Session.Tools = append(s.Session.Tools, state.ToolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			Instruction: t.Instruction(),
		})
	}
	s.Session.Categories = categories
	s.Session.Memories = memories

	m, err := state.NewManager(s)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize turn state: %w", err)
	}
	return m, nil
}

func conversationName(message string) string {
	name := strings.Join(strings.Fields(message), " ")
	if r := []rune(name); len(r) > 60 {
		name = string(r[:60]) + "..."
	}
	return name
}

// isAbsorbed reports whether a tool dispatch error becomes an error document
// instead of ending the turn.
func isAbsorbed(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errs.IsToolExecution(err) || errs.IsNotFound(err)
}
