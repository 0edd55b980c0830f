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

// Package observability provides OpenTelemetry tracing and Prometheus
// metrics. Nothing in the runtime depends on it for control flow.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the tracer and metrics for the process.
type Manager struct {
	tracer   *Tracer
	metrics  Metrics
	handler  http.Handler
	shutdown []func(context.Context) error
}

// New builds the tracer and metrics described by cfg.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := Noop()

	tp, shutdown, err := NewTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	m.tracer = NewTracer(tp)
	m.shutdown = append(m.shutdown, shutdown)
	if cfg.Tracing.Enabled {
		slog.Info("Tracing enabled", "exporter", cfg.Tracing.Exporter, "endpoint", cfg.Tracing.Endpoint)
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		pm, err := NewPrometheusMetrics(cfg.Metrics, reg)
		if err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
		m.metrics = pm
		m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		m.shutdown = append(m.shutdown, pm.Shutdown)
		slog.Info("Metrics enabled", "namespace", cfg.Metrics.Namespace)
	}

	return m, nil
}

// Noop returns a manager that records nothing.
func Noop() *Manager {
	return &Manager{
		tracer:  NoopTracer(),
		metrics: NoopMetrics{},
		handler: http.NotFoundHandler(),
	}
}

func (m *Manager) Tracer() *Tracer { return m.tracer }

func (m *Manager) Metrics() Metrics { return m.metrics }

// MetricsHandler serves the Prometheus exposition format, or 404 when
// metrics are disabled.
func (m *Manager) MetricsHandler() http.Handler { return m.handler }

func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range m.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}
