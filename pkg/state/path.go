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

package state

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// WithPath returns a copy of tree with value written at the dot separated
// path. When both the value and the current node are objects the value is
// merged key by key. Anything else replaces the node. An empty path
// addresses the root. tree is never modified.
func WithPath(tree []byte, path string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value for %q: %w", path, err)
	}
	patch := gjson.ParseBytes(raw)

	if path == "" {
		if !patch.IsObject() {
			return nil, fmt.Errorf("root value must be an object")
		}
		if !gjson.ParseBytes(tree).IsObject() {
			return raw, nil
		}
	}

	current := gjson.GetBytes(tree, path)
	if path != "" && !(patch.IsObject() && current.IsObject()) {
		return sjson.SetRawBytes(tree, path, raw)
	}

	out := append([]byte(nil), tree...)
	var setErr error
	patch.ForEach(func(key, v gjson.Result) bool {
		out, setErr = sjson.SetRawBytes(out, join(path, gjson.Escape(key.String())), []byte(v.Raw))
		return setErr == nil
	})
	if setErr != nil {
		return nil, fmt.Errorf("failed to merge %q: %w", path, setErr)
	}
	return out, nil
}

// Change is one leaf level difference between two trees.
type Change struct {
	Path string `json:"path"`
	Old  any    `json:"old,omitempty"`
	New  any    `json:"new,omitempty"`
}

// Diff lists the differences between two trees. Objects are compared key by
// key. Arrays and scalars are compared as a whole.
func Diff(before, after []byte) []Change {
	var out []Change
	diff("", gjson.ParseBytes(before), gjson.ParseBytes(after), &out)
	return out
}

func diff(path string, a, b gjson.Result, out *[]Change) {
	if a.IsObject() && b.IsObject() {
		keys := make([]string, 0)
		seen := make(map[string]bool)
		collect := func(r gjson.Result) {
			r.ForEach(func(k, _ gjson.Result) bool {
				if !seen[k.String()] {
					seen[k.String()] = true
					keys = append(keys, k.String())
				}
				return true
			})
		}
		collect(a)
		collect(b)
		for _, k := range keys {
			esc := gjson.Escape(k)
			diff(join(path, k), a.Get(esc), b.Get(esc), out)
		}
		return
	}
	if a.Exists() == b.Exists() && compact(a.Raw) == compact(b.Raw) {
		return
	}
	*out = append(*out, Change{Path: path, Old: a.Value(), New: b.Value()})
}

func compact(raw string) string {
	var b bytes.Buffer
	if err := json.Compact(&b, []byte(raw)); err != nil {
		return raw
	}
	return b.String()
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
