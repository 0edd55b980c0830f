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

// Package utils holds small helpers shared across the runtime.
package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	// BPE ranks ship with the binary; counting never reaches the network.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// DefaultEncoding is used for models without a known encoding.
const DefaultEncoding = "cl100k_base"

// TokenCounter counts tokens for one encoding.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	name     string
	mu       sync.RWMutex
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter creates a counter for a model name or an encoding name
// such as "cl100k_base".
func NewTokenCounter(modelOrEncoding string) (*TokenCounter, error) {
	name := modelOrEncoding
	if !strings.HasSuffix(name, "_base") {
		name = GetEncodingForModel(modelOrEncoding)
	}

	cacheMu.RLock()
	cached, exists := encodingCache[name]
	cacheMu.RUnlock()

	if exists {
		return &TokenCounter{encoding: cached, name: name}, nil
	}

	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[name] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, name: name}, nil
}

// Count returns the token count for text
func (tc *TokenCounter) Count(text string) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	return len(tc.encoding.Encode(text, nil, nil))
}

// Encoding returns the encoding name in use.
func (tc *TokenCounter) Encoding() string {
	return tc.name
}

// GetEncodingForModel returns the appropriate encoding name for a model
func GetEncodingForModel(model string) string {
	encodingMap := map[string]string{
		"gpt-4":              "cl100k_base",
		"gpt-4-turbo":        "cl100k_base",
		"gpt-4o":             "o200k_base",
		"gpt-4o-mini":        "o200k_base",
		"gpt-3.5-turbo":      "cl100k_base",
		"text-embedding-ada": "cl100k_base",
		"text-embedding-3":   "cl100k_base",
		"gemini":             "cl100k_base", // approximation
	}

	if encoding, exists := encodingMap[model]; exists {
		return encoding
	}

	best := ""
	for prefix := range encodingMap {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		return encodingMap[best]
	}

	return DefaultEncoding
}
