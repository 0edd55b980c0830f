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
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records runtime measurements. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordTurn(ctx context.Context, duration time.Duration, steps int, err error)
	RecordToolExecution(ctx context.Context, tool, action string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model, operation string, duration time.Duration, err error)
	RecordRecall(ctx context.Context, duration time.Duration, hits int)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordTurn(context.Context, time.Duration, int, error) {}

func (NoopMetrics) RecordToolExecution(context.Context, string, string, time.Duration, error) {}

func (NoopMetrics) RecordLLMCall(context.Context, string, string, time.Duration, error) {}

func (NoopMetrics) RecordRecall(context.Context, time.Duration, int) {}

// PrometheusMetrics records through OTel instruments exported to a
// Prometheus registry.
type PrometheusMetrics struct {
	provider *sdkmetric.MeterProvider

	turnDuration metric.Float64Histogram
	turnsTotal   metric.Int64Counter
	turnErrors   metric.Int64Counter
	stepsTotal   metric.Int64Counter

	toolDuration metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter

	llmDuration metric.Float64Histogram
	llmCalls    metric.Int64Counter
	llmErrors   metric.Int64Counter

	recallDuration metric.Float64Histogram
	recallHits     metric.Int64Histogram
}

// NewPrometheusMetrics registers the instruments on reg.
func NewPrometheusMetrics(cfg MetricsConfig, reg prometheus.Registerer) (*PrometheusMetrics, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg), otelprom.WithNamespace(cfg.Namespace))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(instrumentationName)
	m := &PrometheusMetrics{provider: provider}

	hist := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}

	m.turnDuration = hist("turn_duration", "Turn duration in seconds")
	m.turnsTotal = counter("turns", "Total turns")
	m.turnErrors = counter("turn_errors", "Turns that ended with an error")
	m.stepsTotal = counter("steps", "Reasoning loop steps executed")
	m.toolDuration = hist("tool_duration", "Tool execution duration in seconds")
	m.toolCalls = counter("tool_calls", "Total tool calls")
	m.toolErrors = counter("tool_errors", "Tool calls that failed")
	m.llmDuration = hist("llm_duration", "Completion request duration in seconds")
	m.llmCalls = counter("llm_calls", "Total completion requests")
	m.llmErrors = counter("llm_errors", "Completion requests that failed")
	m.recallDuration = hist("recall_duration", "Memory recall duration in seconds")
	if err == nil {
		m.recallHits, err = meter.Int64Histogram("recall_hits", metric.WithDescription("Memories returned per recall"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument: %w", err)
	}
	return m, nil
}

func (m *PrometheusMetrics) RecordTurn(ctx context.Context, duration time.Duration, steps int, err error) {
	m.turnDuration.Record(ctx, duration.Seconds())
	m.turnsTotal.Add(ctx, 1)
	m.stepsTotal.Add(ctx, int64(steps))
	if err != nil {
		m.turnErrors.Add(ctx, 1)
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool, action string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("action", action),
	)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCalls.Add(ctx, 1, attrs)
	if err != nil {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmCalls.Add(ctx, 1, attrs)
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordRecall(ctx context.Context, duration time.Duration, hits int) {
	m.recallDuration.Record(ctx, duration.Seconds())
	m.recallHits.Record(ctx, int64(hits))
}

// Shutdown stops the meter provider.
func (m *PrometheusMetrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

var (
	_ Metrics = NoopMetrics{}
	_ Metrics = (*PrometheusMetrics)(nil)
)
