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

package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/wojcikm/alice/pkg/store"
)

func selfQueryPrompt(aiName, userName string, categories []store.Category, now time.Time) string {
	if aiName == "" {
		aiName = "Alice"
	}
	if userName == "" {
		userName = "the user"
	}

	var memoryMap strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&memoryMap, "- %s / %s: %s\n", c.Name, c.Subcategory, c.Description)
	}

	return fmt.Sprintf(`You're %[1]s, thinking about the questions you have to ask yourself to recall memories that will help with %[2]s's query.

<objective>
Ask yourself questions against the memory map categories. They are used for semantic and keyword search over your memories.
Current datetime: %[3]s
</objective>

<memory_map>
%[4]s</memory_map>

<rules>
- Answer with JSON matching the schema: {"_thinking": string, "queries": [{"category", "subcategory", "question", "query"}]}
- category and subcategory must be a pair listed in the memory map; anything outside the map is forbidden
- question is natural language, as if asking yourself
- query holds keywords optimized for keyword search
- mention %[1]s or %[2]s by name when the question is about either of you
- ask several questions per category when needed
</rules>

<example>
User: What books have I read recently?
{"_thinking": "Check %[2]s's reading activity", "queries": [{"category": "resources", "subcategory": "books", "question": "Which books did %[2]s read recently?", "query": "%[2]s books read"}]}
</example>`, aiName, userName, now.Format(time.RFC1123), memoryMap.String())
}
