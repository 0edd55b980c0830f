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
	"iter"
	"log/slog"
	"time"

	"github.com/wojcikm/alice/pkg/observability"
)

// Instrumented wraps a Client with spans, metrics and debug logging of
// prompt bodies.
type Instrumented struct {
	Client
	tracer  *observability.Tracer
	metrics observability.Metrics
}

func Instrument(c Client, tracer *observability.Tracer, metrics observability.Metrics) *Instrumented {
	if tracer == nil {
		tracer = observability.NoopTracer()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Instrumented{Client: c, tracer: tracer, metrics: metrics}
}

func (i *Instrumented) Text(ctx context.Context, req Request) (string, error) {
	return i.observe(ctx, req, func(ctx context.Context) (string, error) {
		return i.Client.Text(ctx, req)
	})
}

func (i *Instrumented) JSON(ctx context.Context, req Request, schema map[string]any) (string, error) {
	return i.observe(ctx, req, func(ctx context.Context) (string, error) {
		return i.Client.JSON(ctx, req, schema)
	})
}

func (i *Instrumented) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		model := modelOf(i.Client, req)
		ctx, span := i.tracer.StartLLMCall(ctx, model, req.Name)
		defer span.End()
		start := time.Now()

		var failed error
		for delta, err := range i.Client.Stream(ctx, req) {
			if err != nil {
				failed = err
			}
			if !yield(delta, err) || err != nil {
				break
			}
		}
		observability.RecordError(span, failed)
		i.metrics.RecordLLMCall(ctx, model, req.Name, time.Since(start), failed)
	}
}

func (i *Instrumented) observe(ctx context.Context, req Request, call func(context.Context) (string, error)) (string, error) {
	model := modelOf(i.Client, req)
	ctx, span := i.tracer.StartLLMCall(ctx, model, req.Name)
	defer span.End()

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		for _, m := range req.Messages {
			slog.Debug("Prompt", "operation", req.Name, "role", m.Role, "content", m.Content)
		}
	}

	start := time.Now()
	out, err := call(ctx)
	observability.RecordError(span, err)
	i.metrics.RecordLLMCall(ctx, model, req.Name, time.Since(start), err)
	if err != nil {
		slog.Warn("Completion failed", "operation", req.Name, "model", model, "error", err)
	}
	return out, err
}
