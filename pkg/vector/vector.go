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

// Package vector provides vector index backends behind one Provider
// interface: embedded chromem-go, Qdrant and Pinecone.
package vector

import "context"

// Result is one similarity hit.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// Provider stores vectors with a flat metadata payload and answers
// similarity queries. Filters are exact matches on payload keys and are
// applied by the backend before ranking.
type Provider interface {
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)
	Delete(ctx context.Context, collection string, id string) error
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error
	DeleteCollection(ctx context.Context, collection string) error
	Name() string
	Close() error
}

// NilProvider accepts writes and finds nothing.
type NilProvider struct{}

func (NilProvider) Upsert(context.Context, string, string, []float32, map[string]any) error {
	return nil
}

func (NilProvider) Search(context.Context, string, []float32, int) ([]Result, error) {
	return nil, nil
}

func (NilProvider) SearchWithFilter(context.Context, string, []float32, int, map[string]any) ([]Result, error) {
	return nil, nil
}

func (NilProvider) Delete(context.Context, string, string) error { return nil }

func (NilProvider) DeleteByFilter(context.Context, string, map[string]any) error { return nil }

func (NilProvider) CreateCollection(context.Context, string, int) error { return nil }

func (NilProvider) DeleteCollection(context.Context, string) error { return nil }

func (NilProvider) Name() string { return "nil" }

func (NilProvider) Close() error { return nil }

var _ Provider = NilProvider{}
