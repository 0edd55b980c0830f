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

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/llm"
	"github.com/wojcikm/alice/pkg/observability"
	"github.com/wojcikm/alice/pkg/state"
	"github.com/wojcikm/alice/pkg/store"
	"github.com/wojcikm/alice/pkg/task"
	"github.com/wojcikm/alice/pkg/tool"
)

// Completion names. They label spans and metrics and select scripted
// replies in tests.
const (
	CallFastTrack   = "fast_track"
	CallEnvironment = "environment"
	CallContext     = "context"
	CallDraftTools  = "draft_tools"
	CallDraftMemory = "draft_memory"
	CallPlan        = "plan"
	CallNext        = "next"
	CallUse         = "use"
	CallAnswer      = "answer"
)

// turn is the request scoped part of a Run.
type turn struct {
	agent        *Agent
	conversation string
	req          Request
	state        *state.Manager
	steps        int
}

type decision struct {
	Thinking string `json:"_thinking"`
	Result   bool   `json:"result"`
}

type narration struct {
	Thinking string  `json:"_thinking"`
	Result   *string `json:"result"`
}

type toolQueries struct {
	Thinking string            `json:"_thinking"`
	Result   []state.ToolQuery `json:"result"`
}

type memoryQueries struct {
	Thinking string              `json:"_thinking"`
	Result   []state.MemoryQuery `json:"result"`
}

type plannedTask struct {
	UUID        *string `json:"uuid"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status" jsonschema:"enum=pending,enum=completed"`
}

type plan struct {
	Thinking string        `json:"_thinking"`
	Result   []plannedTask `json:"result"`
}

type selection struct {
	Name     string `json:"name"`
	ToolName string `json:"tool_name"`
	TaskUUID string `json:"task_uuid"`
}

type nextAction struct {
	Thinking string     `json:"_thinking"`
	Result   *selection `json:"result"`
}

type toolCall struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type usage struct {
	Thinking string   `json:"_thinking"`
	Result   toolCall `json:"result"`
}

// think runs everything before the answer. It returns early when the fast
// track decides no tool or memory is needed.
func (t *turn) think(ctx context.Context) error {
	if t.state.Get().Config.FastTrack {
		needed, err := t.fastTrack(ctx)
		if err != nil {
			return err
		}
		if !needed {
			slog.Info("Fast track answer", "conversation_uuid", t.conversation)
			return nil
		}
	}

	if err := t.observe(ctx); err != nil {
		return err
	}
	if err := t.draft(ctx); err != nil {
		return err
	}

	for {
		cfg := t.state.Get().Config
		if cfg.Step >= cfg.MaxSteps {
			slog.Warn("Step limit reached", "conversation_uuid", t.conversation, "max_steps", cfg.MaxSteps)
			return nil
		}
		if err := t.plan(ctx); err != nil {
			return err
		}
		done, err := t.next(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		call, err := t.use(ctx)
		if err != nil {
			return err
		}
		if err := t.act(ctx, call); err != nil {
			return err
		}
		t.steps++
		if err := t.state.UpdateConfig(state.Patch{"step": cfg.Step + 1}); err != nil {
			return err
		}
	}
}

func (t *turn) fastTrack(ctx context.Context) (bool, error) {
	ctx, span := t.agent.tracer.StartPhase(ctx, CallFastTrack)
	defer span.End()

	s := t.state.Get()
	system, err := render(CallFastTrack, t.data(s))
	if err != nil {
		return false, err
	}
	var history []llm.Message
	for _, m := range s.Interaction.Messages {
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			history = append(history, m)
		}
	}
	if len(history) > historyForFastTrack {
		history = history[len(history)-historyForFastTrack:]
	}

	req := t.request(CallFastTrack, system, history)
	req.Model = s.Config.AltModel
	req.Temperature = zero()
	d, err := llm.Object[decision](ctx, t.agent.llm, req)
	if err != nil {
		observability.RecordError(span, err)
		return false, fmt.Errorf("fast track failed: %w", err)
	}
	slog.Debug("Fast track decision", "needed", d.Result, "thinking", d.Thinking)
	return d.Result, nil
}

// observe narrates the environment and the general context in parallel.
func (t *turn) observe(ctx context.Context) error {
	ctx, span := t.agent.tracer.StartPhase(ctx, "observe")
	defer span.End()
	slog.Info("Observing", "conversation_uuid", t.conversation)

	s := t.state.Get()
	var environment, general string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		environment, err = t.narrate(gctx, CallEnvironment, s)
		return err
	})
	g.Go(func() (err error) {
		general, err = t.narrate(gctx, CallContext, s)
		return err
	})
	if err := g.Wait(); err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("observe failed: %w", err)
	}
	return t.state.UpdateThoughts(state.Patch{"environment": environment, "context": general})
}

func (t *turn) narrate(ctx context.Context, name string, s state.State) (string, error) {
	system, err := render(name, t.data(s))
	if err != nil {
		return "", err
	}
	n, err := llm.Object[narration](ctx, t.agent.llm, t.request(name, system, s.Interaction.Messages))
	if err != nil {
		return "", err
	}
	if n.Result == nil {
		return "", nil
	}
	return *n.Result, nil
}

// draft proposes tool and memory queries in parallel. Queries for unknown
// tools or categories are dropped.
func (t *turn) draft(ctx context.Context) error {
	ctx, span := t.agent.tracer.StartPhase(ctx, "draft")
	defer span.End()
	slog.Info("Drafting", "conversation_uuid", t.conversation)

	s := t.state.Get()
	data := t.data(s)
	var (
		tools    toolQueries
		memories memoryQueries
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		system, err := render(CallDraftTools, data)
		if err != nil {
			return err
		}
		tools, err = llm.Object[toolQueries](gctx, t.agent.llm, t.request(CallDraftTools, system, s.Interaction.Messages))
		return err
	})
	g.Go(func() error {
		system, err := render(CallDraftMemory, data)
		if err != nil {
			return err
		}
		memories, err = llm.Object[memoryQueries](gctx, t.agent.llm, t.request(CallDraftMemory, system, s.Interaction.Messages))
		return err
	})
	if err := g.Wait(); err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("draft failed: %w", err)
	}

	toolQs := make([]state.ToolQuery, 0, len(tools.Result))
	for _, q := range tools.Result {
		if _, ok := s.Tool(q.Tool); ok && strings.TrimSpace(q.Query) != "" {
			toolQs = append(toolQs, q)
		}
	}
	memoryQs := make([]state.MemoryQuery, 0, len(memories.Result))
	for _, q := range memories.Result {
		if knownCategory(s.Session.Categories, q.Category, q.Subcategory) && strings.TrimSpace(q.Query) != "" {
			memoryQs = append(memoryQs, q)
		}
	}
	return t.state.UpdateThoughts(state.Patch{"tools": toolQs, "memory": memoryQs})
}

func knownCategory(categories []store.Category, name, subcategory string) bool {
	for _, c := range categories {
		if c.Name == name && (subcategory == "" || c.Subcategory == subcategory) {
			return true
		}
	}
	return false
}

// plan asks for the task list and persists it.
func (t *turn) plan(ctx context.Context) error {
	ctx, span := t.agent.tracer.StartPhase(ctx, CallPlan)
	defer span.End()

	s := t.state.Get()
	slog.Info("Planning", "conversation_uuid", t.conversation, "step", s.Config.Step)
	system, err := render(CallPlan, t.data(s))
	if err != nil {
		return err
	}
	p, err := llm.Object[plan](ctx, t.agent.llm, t.request(CallPlan, system, s.Interaction.Messages))
	if err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("plan failed: %w", err)
	}

	drafts := make([]task.Draft, 0, len(p.Result))
	for _, pt := range p.Result {
		if strings.TrimSpace(pt.Name) == "" {
			continue
		}
		drafts = append(drafts, task.Draft{UUID: pt.UUID, Name: pt.Name, Description: pt.Description})
	}
	tasks, err := t.agent.tasks.CreateOrUpdate(ctx, t.conversation, drafts)
	if err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("failed to store plan: %w", err)
	}
	return t.state.UpdateInteraction(state.Patch{"tasks": tasks})
}

// next selects the task and tool of the next action and stores the action.
// It reports done when the selected tool is final_answer or nothing is
// left to do.
func (t *turn) next(ctx context.Context) (bool, error) {
	ctx, span := t.agent.tracer.StartPhase(ctx, CallNext)
	defer span.End()

	s := t.state.Get()
	system, err := render(CallNext, t.data(s))
	if err != nil {
		return false, err
	}
	n, err := llm.Object[nextAction](ctx, t.agent.llm, t.request(CallNext, system, s.Interaction.Messages))
	if err != nil {
		observability.RecordError(span, err)
		return false, fmt.Errorf("next action failed: %w", err)
	}
	if n.Result == nil {
		slog.Info("Nothing left to do", "conversation_uuid", t.conversation)
		return true, nil
	}

	sel := *n.Result
	if sel.ToolName == "" {
		sel.ToolName = tool.FinalAnswer
	}
	if sel.Name == "" {
		sel.Name = sel.ToolName
	}
	target := targetTask(s.Interaction.Tasks, sel)
	if target == nil {
		return true, nil
	}
	if target.UUID != sel.TaskUUID {
		slog.Debug("Action moved to another task", "selected", sel.TaskUUID,
			"task_uuid", target.UUID, "tool", sel.ToolName)
	}

	action, err := t.agent.tasks.CreateAction(ctx, task.NewAction{
		TaskUUID: target.UUID,
		Tool:     sel.ToolName,
		Name:     sel.Name,
		Sequence: s.Config.Step,
	})
	if err != nil {
		observability.RecordError(span, err)
		return false, fmt.Errorf("failed to create action: %w", err)
	}
	slog.Info("Next action", "conversation_uuid", t.conversation, "task", target.Name,
		"tool", action.Tool, "action", action.Name)

	if err := t.refresh(ctx, state.Update{Path: state.PathConfig, Value: state.Patch{
		"current_task":   target.UUID,
		"current_action": action.UUID,
		"current_tool":   action.Tool,
	}}); err != nil {
		return false, err
	}
	return action.Tool == tool.FinalAnswer, nil
}

// targetTask picks the task an action goes on. final_answer only ever lands
// on the pending final task. Other tools go on the selected task when it is
// a pending regular one, then on the first pending regular task. Nil means
// nothing is left to do.
func targetTask(tasks []*store.Task, sel selection) *store.Task {
	if sel.ToolName == tool.FinalAnswer {
		return firstPending(tasks, store.TaskFinal)
	}
	for _, t := range tasks {
		if t.UUID == sel.TaskUUID && t.Status == store.TaskPending && t.Kind != store.TaskFinal {
			return t
		}
	}
	return firstPending(tasks, store.TaskRegular)
}

func firstPending(tasks []*store.Task, kind store.TaskKind) *store.Task {
	for _, t := range tasks {
		if t.Status == store.TaskPending && t.Kind == kind {
			return t
		}
	}
	return nil
}

// use writes the tool call for the current action. Contextual tools add
// their context to the snapshot first.
func (t *turn) use(ctx context.Context) (toolCall, error) {
	ctx, span := t.agent.tracer.StartPhase(ctx, CallUse)
	defer span.End()

	s := t.state.Get()
	if impl, ok := t.agent.tools.Get(s.Config.CurrentTool); ok {
		if c, ok := impl.(tool.Contextual); ok {
			doc, err := c.Context(ctx, t.conversation)
			switch {
			case err != nil:
				slog.Warn("Tool context unavailable", "tool", impl.Name(), "error", err)
			case doc != nil:
				docs := append(append([]*document.Document(nil), s.Interaction.ToolContext...), doc)
				if err := t.state.UpdateInteraction(state.Patch{"tool_context": docs}); err != nil {
					return toolCall{}, err
				}
				s = t.state.Get()
			}
		}
	}

	system, err := render(CallUse, t.data(s))
	if err != nil {
		return toolCall{}, err
	}
	u, err := llm.Object[usage](ctx, t.agent.llm, t.request(CallUse, system, s.Interaction.Messages))
	if err != nil {
		observability.RecordError(span, err)
		return toolCall{}, fmt.Errorf("payload generation failed: %w", err)
	}

	call := u.Result
	if len(call.Payload) == 0 || string(call.Payload) == "null" {
		call.Payload = json.RawMessage(`{}`)
	}
	if err := t.agent.tasks.UpdateActionPayload(ctx, s.Config.CurrentAction, call.Payload); err != nil {
		observability.RecordError(span, err)
		return toolCall{}, fmt.Errorf("failed to store payload: %w", err)
	}
	return call, t.refresh(ctx)
}

// act dispatches the call and completes the current action with its
// result. Tool failures complete the action with an error document.
func (t *turn) act(ctx context.Context, call toolCall) error {
	ctx, span := t.agent.tracer.StartPhase(ctx, "act")
	defer span.End()

	s := t.state.Get()
	name := s.Config.CurrentTool
	doc, err := t.agent.tools.Execute(ctx, name, tool.Call{
		Action:           call.Action,
		Payload:          call.Payload,
		ConversationUUID: t.conversation,
	})
	if err != nil {
		if !isAbsorbed(err) {
			observability.RecordError(span, err)
			return err
		}
		slog.Warn("Tool failed", "tool", name, "action", call.Action, "error", err)
		doc = document.NewErrorDocument(err, name+"."+call.Action, t.conversation)
	}

	if _, err := t.agent.tasks.UpdateActionWithResult(ctx, s.Config.CurrentAction, doc); err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("failed to complete action: %w", err)
	}
	return t.refresh(ctx)
}

// answer writes the reply. It streams when the request asked for deltas.
func (t *turn) answer(ctx context.Context) (string, error) {
	ctx, span := t.agent.tracer.StartPhase(ctx, CallAnswer)
	defer span.End()
	slog.Info("Answering", "conversation_uuid", t.conversation, "streaming", t.req.OnDelta != nil)

	s := t.state.Get()
	system, err := render(CallAnswer, t.data(s))
	if err != nil {
		return "", err
	}
	req := t.request(CallAnswer, system, s.Interaction.Messages)

	var text string
	if t.req.OnDelta != nil {
		text, err = llm.Collect(t.agent.llm.Stream(ctx, req), t.req.OnDelta)
	} else {
		text, err = t.agent.llm.Text(ctx, req)
	}
	if err != nil {
		observability.RecordError(span, err)
		return "", fmt.Errorf("answer failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// finish completes the final_answer action and the final task with the
// answer.
func (t *turn) finish(ctx context.Context, answer string) error {
	s := t.state.Get()
	if s.Config.CurrentTool == tool.FinalAnswer && s.Config.CurrentAction != "" {
		if _, err := t.agent.tasks.UpdateActionWithResult(ctx, s.Config.CurrentAction, answer); err != nil {
			return fmt.Errorf("failed to complete final action: %w", err)
		}
	}

	tasks, err := t.agent.tasks.FindByConversation(ctx, t.conversation)
	if err != nil {
		return err
	}
	for _, tk := range tasks {
		if tk.Kind == store.TaskFinal && tk.Status == store.TaskPending {
			if err := t.agent.tasks.CompleteTask(ctx, tk.UUID, answer); err != nil {
				return fmt.Errorf("failed to complete final task: %w", err)
			}
		}
	}
	return t.refresh(ctx)
}

// refresh reloads the plan into the snapshot together with extra updates,
// in one transaction.
func (t *turn) refresh(ctx context.Context, extra ...state.Update) error {
	tasks, err := t.agent.tasks.FindByConversation(ctx, t.conversation)
	if err != nil {
		return err
	}
	updates := append([]state.Update{{
		Path:  state.PathInteraction,
		Value: state.Patch{"tasks": tasks},
	}}, extra...)
	return t.state.Transaction(updates...)
}

func (t *turn) request(name, system string, history []llm.Message) llm.Request {
	s := t.state.Get()
	temperature := s.Config.Temperature
	slog.Debug("Prompt", "call", name, "system", system)
	return llm.Request{
		Name:        name,
		Model:       s.Config.Model,
		Messages:    append([]llm.Message{llm.System(system)}, history...),
		Temperature: &temperature,
		MaxTokens:   s.Config.MaxTokens,
	}
}

func (t *turn) data(s state.State) promptData {
	d := promptData{State: s, Now: t.agent.now().Format("2006-01-02 15:04 Monday")}
	d.CurrentTask = s.Task(s.Config.CurrentTask)
	if d.CurrentTask != nil {
		for _, a := range d.CurrentTask.Actions {
			if a.UUID == s.Config.CurrentAction {
				d.CurrentAction = a
			}
		}
	}
	if info, ok := s.Tool(s.Config.CurrentTool); ok {
		d.SelectedTool = info
	} else {
		d.SelectedTool = state.ToolInfo{Name: "unknown"}
	}
	return d
}

func zero() *float64 {
	v := 0.0
	return &v
}
