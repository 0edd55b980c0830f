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
	"slices"
	"strings"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the Qdrant vector provider.
type QdrantConfig struct {
	Host string `yaml:"host" json:"host"`

	// Port is the gRPC port (default: 6334).
	Port int `yaml:"port" json:"port"`

	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	UseTLS bool `yaml:"use_tls,omitempty" json:"use_tls,omitempty"`
}

// QdrantProvider implements Provider over the Qdrant gRPC API. Point ids
// must be UUIDs, which document UUIDs are.
type QdrantProvider struct {
	client *qdrant.Client
	config QdrantConfig

	mu    sync.Mutex
	ready map[string]bool
}

// NewQdrantProvider creates a new Qdrant provider. The connection is opened
// lazily on the first call.
func NewQdrantProvider(cfg QdrantConfig) (*QdrantProvider, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &QdrantProvider{
		client: client,
		config: cfg,
		ready:  make(map[string]bool),
	}, nil
}

func (p *QdrantProvider) Name() string {
	return "qdrant"
}

// Upsert stores the vector under id, creating the collection on first use.
func (p *QdrantProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	if err := p.ensureCollection(ctx, collection, len(vector)); err != nil {
		return err
	}

	payload, err := qdrant.TryValueMap(metadata)
	if err != nil {
		return fmt.Errorf("failed to convert payload for %s: %w", id, err)
	}

	_, err = p.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(vector...),
			Payload: payload,
		}},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point %s: %w", id, err)
	}
	return nil
}

func (p *QdrantProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vector, topK, nil)
}

// SearchWithFilter ranks points matching every filter key. A collection
// that does not exist yet has no hits.
func (p *QdrantProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	points, err := p.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         qdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if isQdrantNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}

	results := make([]Result, 0, len(points.GetResult()))
	for _, point := range points.GetResult() {
		results = append(results, fromScoredPoint(point))
	}
	return results, nil
}

func (p *QdrantProvider) Delete(ctx context.Context, collection string, id string) error {
	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(id)),
	})
	if err != nil && !isQdrantNotFound(err) {
		return fmt.Errorf("failed to delete point %s: %w", id, err)
	}
	return nil
}

func (p *QdrantProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	if len(filter) == 0 {
		return fmt.Errorf("refusing to delete with an empty filter")
	}
	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(qdrantFilter(filter)),
	})
	if err != nil && !isQdrantNotFound(err) {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// CreateCollection creates a cosine collection unless it exists.
func (p *QdrantProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	return p.ensureCollection(ctx, collection, vectorDimension)
}

func (p *QdrantProvider) ensureCollection(ctx context.Context, collection string, dimension int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready[collection] {
		return nil
	}

	exists, err := p.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		err = p.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create collection %s: %w", collection, err)
		}
	}
	p.ready[collection] = true
	return nil
}

func (p *QdrantProvider) DeleteCollection(ctx context.Context, collection string) error {
	p.mu.Lock()
	delete(p.ready, collection)
	p.mu.Unlock()

	if err := p.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}
	return nil
}

func (p *QdrantProvider) Close() error {
	return p.client.Close()
}

func isQdrantNotFound(err error) bool {
	return strings.Contains(err.Error(), "Not found") || strings.Contains(err.Error(), "doesn't exist")
}

// qdrantFilter turns exact-match filters into must conditions, ordered by
// key. Empty filters yield nil.
func qdrantFilter(filter map[string]any) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	must := make([]*qdrant.Condition, 0, len(keys))
	for _, key := range keys {
		switch v := filter[key].(type) {
		case bool:
			must = append(must, qdrant.NewMatchBool(key, v))
		case int:
			must = append(must, qdrant.NewMatchInt(key, int64(v)))
		case int64:
			must = append(must, qdrant.NewMatchInt(key, v))
		default:
			must = append(must, qdrant.NewMatchKeyword(key, fmt.Sprint(v)))
		}
	}
	return &qdrant.Filter{Must: must}
}

func fromScoredPoint(point *qdrant.ScoredPoint) Result {
	r := Result{
		Score:    point.GetScore(),
		Metadata: make(map[string]any, len(point.GetPayload())),
	}

	switch id := point.GetId().GetPointIdOptions().(type) {
	case *qdrant.PointId_Uuid:
		r.ID = id.Uuid
	case *qdrant.PointId_Num:
		r.ID = fmt.Sprint(id.Num)
	}

	for key, value := range point.GetPayload() {
		r.Metadata[key] = fromQdrantValue(value)
	}
	r.Content, _ = r.Metadata["content"].(string)
	return r
}

func fromQdrantValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		list := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			list = append(list, fromQdrantValue(item))
		}
		return list
	case *qdrant.Value_StructValue:
		m := make(map[string]any, len(kind.StructValue.GetFields()))
		for k, item := range kind.StructValue.GetFields() {
			m[k] = fromQdrantValue(item)
		}
		return m
	default:
		return nil
	}
}

var _ Provider = (*QdrantProvider)(nil)
