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

package chunker

import (
	"regexp"
	"strconv"

	"github.com/wojcikm/alice/pkg/document"
)

var headerPattern = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+)$`)

type header struct {
	level int
	text  string
}

func extractHeaders(text string) []header {
	matches := headerPattern.FindAllStringSubmatch(text, -1)
	headers := make([]header, 0, len(matches))
	for _, m := range matches {
		headers = append(headers, header{level: len(m[1]), text: m[2]})
	}
	return headers
}

// updateHeaders applies headers in order. A header replaces its own level
// and clears every deeper one.
func updateHeaders(current document.Headers, found []header) document.Headers {
	next := current.Clone()
	if next == nil {
		next = document.Headers{}
	}
	for _, h := range found {
		next[levelKey(h.level)] = []string{h.text}
		for deeper := h.level + 1; deeper <= 6; deeper++ {
			delete(next, levelKey(deeper))
		}
	}
	return next
}

func levelKey(level int) string {
	return "h" + strconv.Itoa(level)
}
