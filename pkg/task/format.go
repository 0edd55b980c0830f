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

package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wojcikm/alice/pkg/document"
)

var timeNow = func() time.Time { return time.Now().UTC() }

var resultKeys = []string{"uuid", "name", "text", "description", "source"}

// FormatResult renders a tool result as text. Strings pass through,
// documents contribute their text, maps keep the well-known keys as
// "key: value" lines and anything else becomes indented JSON.
func FormatResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case *document.Document:
		if v == nil {
			return ""
		}
		return v.Text
	case []*document.Document:
		texts := make([]string, 0, len(v))
		for _, d := range v {
			if d != nil {
				texts = append(texts, d.Text)
			}
		}
		return strings.Join(texts, "\n\n")
	case error:
		return "Error: " + v.Error()
	case map[string]any:
		var lines []string
		for _, k := range resultKeys {
			if val, ok := v[k]; ok && val != nil && fmt.Sprint(val) != "" {
				lines = append(lines, fmt.Sprintf("%s: %v", k, val))
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}

	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(raw)
}
