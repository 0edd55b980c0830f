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

package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/observability"
	"github.com/wojcikm/alice/pkg/registry"
)

// Registry dispatches calls by tool name.
type Registry struct {
	tools   *registry.Registry[Tool]
	tracer  *observability.Tracer
	metrics observability.Metrics
}

type RegistryOption func(*Registry)

func WithTracer(t *observability.Tracer) RegistryOption {
	return func(r *Registry) { r.tracer = t }
}

func WithMetrics(m observability.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:   registry.New[Tool](),
		tracer:  observability.NoopTracer(),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Register(tools ...Tool) error {
	for _, t := range tools {
		if err := r.tools.Register(t.Name(), t); err != nil {
			return fmt.Errorf("failed to register tool: %w", err)
		}
	}
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	return r.tools.Get(name)
}

// List returns the tools in registration order.
func (r *Registry) List() []Tool {
	return r.tools.List()
}

// Execute dispatches call to the named tool. Any failure inside the tool
// comes back as an errs.ToolExecutionError. An unknown tool is a
// NotFoundError.
func (r *Registry) Execute(ctx context.Context, name string, call Call) (*document.Document, error) {
	t, ok := r.tools.Get(name)
	if !ok {
		return nil, errs.NewNotFoundError("tool", name)
	}

	ctx, span := r.tracer.StartToolExecution(ctx, name, call.Action)
	defer span.End()

	slog.Info("Executing tool", "tool", name, "action", call.Action)
	start := time.Now()

	doc, err := t.Execute(ctx, call)
	if err == nil && doc == nil {
		err = fmt.Errorf("tool returned no document")
	}
	r.metrics.RecordToolExecution(ctx, name, call.Action, time.Since(start), err)

	if err != nil {
		observability.RecordError(span, err)
		if !errs.IsToolExecution(err) {
			err = errs.NewToolExecutionError(name, call.Action, err)
		}
		return nil, err
	}
	if doc.ConversationUUID == "" {
		doc.ConversationUUID = call.ConversationUUID
	}
	return doc, nil
}

// Close closes every tool that holds resources.
func (r *Registry) Close() error {
	var errList []error
	for _, t := range r.tools.List() {
		if c, ok := t.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errList = append(errList, fmt.Errorf("%s: %w", t.Name(), err))
			}
		}
	}
	return errors.Join(errList...)
}
