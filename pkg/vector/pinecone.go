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

package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the Pinecone vector provider.
type PineconeConfig struct {
	APIKey string `yaml:"api_key" json:"api_key"`

	// Host overrides the control plane host.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// IndexName must exist already. Collections map to namespaces inside it.
	IndexName string `yaml:"index_name" json:"index_name" jsonschema:"default=alice"`

	Environment string `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// PineconeProvider implements Provider on a single Pinecone index. Each
// collection is a namespace of that index.
type PineconeProvider struct {
	client    *pinecone.Client
	indexName string

	mu   sync.Mutex
	host string
}

func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Pinecone")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:    cfg.APIKey,
		Host:      cfg.Host,
		SourceTag: "alice",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	p := &PineconeProvider{client: client, indexName: cfg.IndexName}
	if p.indexName == "" {
		p.indexName = "alice"
	}
	return p, nil
}

func (p *PineconeProvider) Name() string {
	return "pinecone"
}

// withNamespace runs fn on a connection scoped to the collection's
// namespace. The index host is resolved once.
func (p *PineconeProvider) withNamespace(ctx context.Context, collection string, fn func(*pinecone.IndexConnection) error) error {
	p.mu.Lock()
	if p.host == "" {
		index, err := p.client.DescribeIndex(ctx, p.indexName)
		if err != nil {
			p.mu.Unlock()
			return fmt.Errorf("failed to describe index %s: %w", p.indexName, err)
		}
		p.host = index.Host
	}
	host := p.host
	p.mu.Unlock()

	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: collection})
	if err != nil {
		return fmt.Errorf("failed to connect to index %s: %w", p.indexName, err)
	}
	defer conn.Close()
	return fn(conn)
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	meta, err := pineconeMetadata(metadata)
	if err != nil {
		return err
	}
	return p.withNamespace(ctx, collection, func(conn *pinecone.IndexConnection) error {
		_, err := conn.UpsertVectors(ctx, []*pinecone.Vector{{Id: id, Values: vector, Metadata: meta}})
		if err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", id, err)
		}
		return nil
	})
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vector, topK, nil)
}

func (p *PineconeProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	metadataFilter, err := pineconeFilter(filter)
	if err != nil {
		return nil, err
	}

	var results []Result
	err = p.withNamespace(ctx, collection, func(conn *pinecone.IndexConnection) error {
		res, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
			Vector:          vector,
			TopK:            uint32(topK),
			MetadataFilter:  metadataFilter,
			IncludeMetadata: true,
		})
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", collection, err)
		}
		results = fromScoredVectors(res.Matches)
		return nil
	})
	return results, err
}

func (p *PineconeProvider) Delete(ctx context.Context, collection string, id string) error {
	return p.withNamespace(ctx, collection, func(conn *pinecone.IndexConnection) error {
		if err := conn.DeleteVectorsById(ctx, []string{id}); err != nil {
			return fmt.Errorf("failed to delete vector %s: %w", id, err)
		}
		return nil
	})
}

func (p *PineconeProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	if len(filter) == 0 {
		return fmt.Errorf("refusing to delete with an empty filter")
	}
	metadataFilter, err := pineconeFilter(filter)
	if err != nil {
		return err
	}
	return p.withNamespace(ctx, collection, func(conn *pinecone.IndexConnection) error {
		if err := conn.DeleteVectorsByFilter(ctx, metadataFilter); err != nil {
			return fmt.Errorf("failed to delete by filter: %w", err)
		}
		return nil
	})
}

// CreateCollection checks that the backing index exists. Namespaces are
// created implicitly on first upsert.
func (p *PineconeProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name != p.indexName {
			continue
		}
		if idx.Dimension != 0 && int(idx.Dimension) != vectorDimension {
			return fmt.Errorf("index %s has dimension %d, embedder produces %d", p.indexName, idx.Dimension, vectorDimension)
		}
		return nil
	}
	return fmt.Errorf("index %s does not exist, create it in the Pinecone console first", p.indexName)
}

// DeleteCollection drops every vector in the collection's namespace.
func (p *PineconeProvider) DeleteCollection(ctx context.Context, collection string) error {
	return p.withNamespace(ctx, collection, func(conn *pinecone.IndexConnection) error {
		if err := conn.DeleteAllVectorsInNamespace(ctx); err != nil {
			return fmt.Errorf("failed to clear namespace %s: %w", collection, err)
		}
		return nil
	})
}

// Close is a no-op. Connections live for one call.
func (p *PineconeProvider) Close() error {
	return nil
}

func pineconeMetadata(metadata map[string]any) (*pinecone.Metadata, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	meta, err := structpb.NewStruct(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to convert metadata: %w", err)
	}
	return meta, nil
}

// pineconeFilter builds {"key": {"$eq": value}} clauses. Empty filters
// yield nil.
func pineconeFilter(filter map[string]any) (*pinecone.MetadataFilter, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	clauses := make(map[string]any, len(filter))
	for k, v := range filter {
		clauses[k] = map[string]any{"$eq": v}
	}
	f, err := structpb.NewStruct(clauses)
	if err != nil {
		return nil, fmt.Errorf("failed to convert filter: %w", err)
	}
	return f, nil
}

func fromScoredVectors(matches []*pinecone.ScoredVector) []Result {
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m == nil || m.Vector == nil {
			continue
		}
		r := Result{ID: m.Vector.Id, Score: m.Score, Metadata: map[string]any{}}
		if m.Vector.Metadata != nil {
			r.Metadata = m.Vector.Metadata.AsMap()
		}
		r.Content, _ = r.Metadata["content"].(string)
		results = append(results, r)
	}
	return results
}

var _ Provider = (*PineconeProvider)(nil)
