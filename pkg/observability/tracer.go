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

package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/wojcikm/alice"

// maxEventValue caps the serialized state value attached to span events.
const maxEventValue = 512

// NewTracerProvider builds an SDK tracer provider for cfg, or a noop
// provider when tracing is disabled. The returned function flushes and
// stops the exporter.
func NewTracerProvider(ctx context.Context, cfg TracingConfig) (trace.TracerProvider, func(context.Context) error, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	default:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.IsInsecure() {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
		sdktrace.WithResource(res),
	)
	return tp, tp.Shutdown, nil
}

// Tracer starts the spans of a turn. The zero value is not usable; use
// NewTracer or NoopTracer.
type Tracer struct {
	tracer trace.Tracer
}

func NewTracer(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(instrumentationName)}
}

// NoopTracer records nothing.
func NoopTracer() *Tracer {
	return NewTracer(noop.NewTracerProvider())
}

func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (t *Tracer) StartTurn(ctx context.Context, conversationUUID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanTurn, attribute.String(AttrConversationUUID, conversationUUID))
}

func (t *Tracer) StartPhase(ctx context.Context, phase string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanPhase+"."+phase, attribute.String(AttrPhase, phase))
}

func (t *Tracer) StartLLMCall(ctx context.Context, model, operation string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanLLMRequest,
		attribute.String(AttrModel, model),
		attribute.String(AttrOperation, operation))
}

func (t *Tracer) StartToolExecution(ctx context.Context, tool, action string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanToolExecution,
		attribute.String(AttrTool, tool),
		attribute.String(AttrAction, action))
}

func (t *Tracer) StartMemorySearch(ctx context.Context, query string, limit int) (context.Context, trace.Span) {
	return t.Start(ctx, SpanMemorySearch,
		attribute.String(AttrQuery, truncate(query, maxEventValue)),
		attribute.Int(AttrLimit, limit))
}

// RecordError marks span as failed. A nil error is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddStateEvent attaches a state change to span as an event.
func AddStateEvent(span trace.Span, path string, value any, at time.Time) {
	if !span.IsRecording() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", value))
	}
	span.AddEvent(EventStateChange,
		trace.WithTimestamp(at),
		trace.WithAttributes(
			attribute.String(AttrStatePath, path),
			attribute.String(AttrStateValue, truncate(string(raw), maxEventValue)),
		))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
