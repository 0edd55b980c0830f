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

// Package runtime builds every component of the assistant from a
// config.Config and owns their lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wojcikm/alice/pkg/agent"
	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/index"
	"github.com/wojcikm/alice/pkg/llm"
	"github.com/wojcikm/alice/pkg/memory"
	"github.com/wojcikm/alice/pkg/observability"
	"github.com/wojcikm/alice/pkg/store"
	"github.com/wojcikm/alice/pkg/task"
	"github.com/wojcikm/alice/pkg/tool"
	"github.com/wojcikm/alice/pkg/tool/documenttool"
)

// Runtime is a fully wired assistant.
type Runtime struct {
	config        *config.Config
	pool          *config.DBPool
	store         *store.Store
	tasks         *task.Service
	indexer       *index.Indexer
	memory        *memory.Service
	ingester      *documenttool.Ingester
	tools         *tool.Registry
	agent         *agent.Agent
	llm           llm.Client
	observability *observability.Manager

	closers []func() error
}

// Options configures New. Only Config is required.
type Options struct {
	Config *config.Config

	// LLM replaces the client built from Config.LLM.
	LLM llm.Client

	// Observability replaces the manager built from Config.Observability.
	Observability *observability.Manager
}

// New wires the store, indices, memory, tools and agent described by the
// configuration. Everything opened so far is released when a step fails.
func New(ctx context.Context, opts Options) (_ *Runtime, err error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := opts.Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	r := &Runtime{config: cfg}
	defer func() {
		if err != nil {
			_ = r.Close()
		}
	}()

	r.observability = opts.Observability
	if r.observability == nil {
		if r.observability, err = observability.New(ctx, cfg.Observability); err != nil {
			return nil, fmt.Errorf("failed to initialize observability: %w", err)
		}
		r.closers = append(r.closers, func() error {
			return r.observability.Shutdown(context.Background())
		})
	}
	tracer, metrics := r.observability.Tracer(), r.observability.Metrics()

	r.pool = config.NewDBPool()
	r.closers = append(r.closers, r.pool.Close)
	db, err := r.pool.Get(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if r.store, err = store.New(ctx, db, cfg.Database.Dialect()); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	r.tasks = task.NewService(r.store)

	if r.indexer, err = r.newIndexer(ctx); err != nil {
		return nil, err
	}

	client := opts.LLM
	if client == nil {
		if client, err = llm.New(ctx, cfg.LLM); err != nil {
			return nil, fmt.Errorf("failed to initialize llm: %w", err)
		}
	}
	r.llm = llm.Instrument(client, tracer, metrics)

	r.memory, err = memory.NewService(memory.Options{
		Store:   r.store,
		Indexer: r.indexer,
		LLM:     r.llm,
		Model:   cfg.LLM.AltModel,
		Tracer:  tracer,
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory: %w", err)
	}

	if r.ingester, err = r.newIngester(); err != nil {
		return nil, err
	}
	if r.tools, err = r.newTools(ctx); err != nil {
		return nil, err
	}

	r.agent, err = agent.New(agent.Options{
		Store:    r.store,
		Tasks:    r.tasks,
		Tools:    r.tools,
		LLM:      r.llm,
		Config:   cfg.Agent,
		Model:    cfg.LLM.Model,
		AltModel: cfg.LLM.AltModel,
		Tracer:   tracer,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize agent: %w", err)
	}

	slog.Info("Runtime ready",
		"database", cfg.Database.Driver,
		"vector", cfg.Vector.Type,
		"keyword", cfg.Keyword.Backend,
		"embedder", cfg.Embedder.Provider,
		"llm", cfg.LLM.Provider,
		"model", r.llm.Model(),
		"tools", len(r.tools.List()))
	return r, nil
}

func (r *Runtime) Config() *config.Config { return r.config }

func (r *Runtime) Store() *store.Store { return r.store }

func (r *Runtime) Tasks() *task.Service { return r.tasks }

func (r *Runtime) Memory() *memory.Service { return r.memory }

func (r *Runtime) Ingester() *documenttool.Ingester { return r.ingester }

func (r *Runtime) Tools() *tool.Registry { return r.tools }

func (r *Runtime) Agent() *agent.Agent { return r.agent }

func (r *Runtime) Observability() *observability.Manager { return r.observability }

// Close releases components in reverse order of creation.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			slog.Warn("Runtime cleanup error", "error", err)
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
