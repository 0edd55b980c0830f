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
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/wojcikm/alice/pkg/errs"
)

var schemaCache sync.Map

// SchemaFor reflects the JSON schema of T.
func SchemaFor[T any]() (map[string]any, error) {
	typ := reflect.TypeFor[T]()
	if cached, ok := schemaCache.Load(typ); ok {
		return cached.(map[string]any), nil
	}

	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	raw, err := json.Marshal(r.ReflectFromType(typ))
	if err != nil {
		return nil, fmt.Errorf("marshal schema of %s: %w", typ, err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema of %s: %w", typ, err)
	}
	delete(schema, "$schema")
	delete(schema, "$id")

	schemaCache.Store(typ, schema)
	return schema, nil
}

// Object asks for a structured completion and decodes it into T.
func Object[T any](ctx context.Context, c Client, req Request) (T, error) {
	var out T

	schema, err := SchemaFor[T]()
	if err != nil {
		return out, errs.NewCompletionError(modelOf(c, req), req.Name, err)
	}

	raw, err := c.JSON(ctx, req, schema)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), &out); err != nil {
		return out, errs.NewCompletionError(modelOf(c, req), req.Name,
			fmt.Errorf("decode structured output: %w", err))
	}
	return out, nil
}

// StripFences removes a surrounding markdown code fence.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func modelOf(c Client, req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.Model()
}
