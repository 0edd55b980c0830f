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
	"strings"

	"github.com/wojcikm/alice/pkg/document"
)

var (
	imagePattern       = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	linkPattern        = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	restorePattern     = regexp.MustCompile(`\{\{\$(?:(url|img)(\d+)\}\}|\$)`)
)

const (
	imagePrefix = "{{$img"
	opener      = "{{$"
	escaped     = "{{$$"
)

// extractPlaceholders swaps image and link targets for indexed placeholders.
// Images go first so the link pass can skip them. Every "{{$" already in the
// text is doubled to "{{$$" first, so literal placeholder lookalikes never
// collide with inserted ones; restore undoes both.
func extractPlaceholders(text string) (string, []string, []string) {
	var images, urls []string

	text = strings.ReplaceAll(text, opener, escaped)

	text = replaceTargets(text, imagePattern, func(target string) (string, bool) {
		images = append(images, unescape(target))
		return "{{$img" + strconv.Itoa(len(images)-1) + "}}", true
	})

	text = replaceTargets(text, linkPattern, func(target string) (string, bool) {
		if strings.HasPrefix(target, imagePrefix) {
			return "", false
		}
		urls = append(urls, unescape(target))
		return "{{$url" + strconv.Itoa(len(urls)-1) + "}}", true
	})

	return text, urls, images
}

// replaceTargets rewrites the second capture group of every match.
func replaceTargets(text string, pattern *regexp.Regexp, replace func(string) (string, bool)) string {
	matches := pattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[4], m[5]
		placeholder, ok := replace(text[start:end])
		if !ok {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(placeholder)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

// RestorePlaceholders puts the original link and image targets back into a
// chunk's text.
func RestorePlaceholders(doc *document.Document) string {
	return restore(doc.Text, doc.Metadata.URLs, doc.Metadata.Images)
}

func unescape(s string) string {
	return strings.ReplaceAll(s, escaped, opener)
}

// restore resolves placeholders and collapses escaped openers in one left to
// right pass.
func restore(text string, urls, images []string) string {
	return restorePattern.ReplaceAllStringFunc(text, func(match string) string {
		if match == escaped {
			return opener
		}
		sub := restorePattern.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[2])
		if err != nil {
			return match
		}
		targets := urls
		if sub[1] == "img" {
			targets = images
		}
		if idx < 0 || idx >= len(targets) {
			return match
		}
		return targets[idx]
	})
}
