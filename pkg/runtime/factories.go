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

package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wojcikm/alice/pkg/chunker"
	"github.com/wojcikm/alice/pkg/embedders"
	"github.com/wojcikm/alice/pkg/index"
	"github.com/wojcikm/alice/pkg/store"
	"github.com/wojcikm/alice/pkg/tool"
	"github.com/wojcikm/alice/pkg/tool/documenttool"
	"github.com/wojcikm/alice/pkg/tool/mcptool"
	"github.com/wojcikm/alice/pkg/tool/memorytool"
	"github.com/wojcikm/alice/pkg/utils"
	"github.com/wojcikm/alice/pkg/vector"
)

// newIndexer pairs the configured vector provider and embedder with the
// configured keyword backend.
func (r *Runtime) newIndexer(ctx context.Context) (*index.Indexer, error) {
	cfg := r.config

	provider, err := vector.NewProvider(&cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector provider: %w", err)
	}
	r.closers = append(r.closers, provider.Close)

	emb, err := embedders.New(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	r.closers = append(r.closers, emb.Close)

	vi, err := index.NewVectorIndex(ctx, provider, emb, cfg.Vector.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}

	var keyword index.KeywordIndex
	switch cfg.Keyword.Backend {
	case "memory":
		keyword = index.NewMemoryKeywordIndex()
	default:
		keyword = store.NewKeywordIndex(r.store)
	}
	return index.NewIndexer(vi, keyword), nil
}

func (r *Runtime) newIngester() (*documenttool.Ingester, error) {
	counter, err := utils.NewTokenCounter(r.config.Chunker.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}
	return documenttool.NewIngester(r.store, r.indexer, chunker.New(counter), r.config.Chunker.Limit), nil
}

// newTools registers the built-in tools and one tool per MCP server. A
// server that fails to start is skipped with a warning.
func (r *Runtime) newTools(ctx context.Context) (*tool.Registry, error) {
	tracer, metrics := r.observability.Tracer(), r.observability.Metrics()
	registry := tool.NewRegistry(tool.WithTracer(tracer), tool.WithMetrics(metrics))
	r.closers = append(r.closers, registry.Close)

	err := registry.Register(
		memorytool.New(r.memory, r.config.Agent.AIName),
		documenttool.New(r.ingester, r.store, r.indexer.Fuser()),
		tool.NewFinalAnswer(),
	)
	if err != nil {
		return nil, err
	}

	for _, server := range r.config.Tools.MCP {
		t, err := mcptool.Connect(ctx, server)
		if err != nil {
			slog.Warn("Skipping MCP server", "name", server.Name, "error", err)
			continue
		}
		if err := registry.Register(t); err != nil {
			_ = t.Close()
			return nil, err
		}
		slog.Info("MCP server connected", "name", server.Name, "actions", len(t.Actions()))
	}
	return registry, nil
}
