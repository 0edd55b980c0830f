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
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/errs"
)

// Gemini calls the Gemini API through google.golang.org/genai.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature *float64
	maxTokens   int
}

func NewGemini(ctx context.Context, cfg config.LLMConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Gemini")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Text(ctx context.Context, req Request) (string, error) {
	return g.generate(ctx, req, nil)
}

func (g *Gemini) JSON(ctx context.Context, req Request, schema map[string]any) (string, error) {
	return g.generate(ctx, req, func(cfg *genai.GenerateContentConfig) {
		cfg.ResponseMIMEType = "application/json"
		if schema != nil {
			cfg.ResponseJsonSchema = schema
		}
	})
}

func (g *Gemini) generate(ctx context.Context, req Request, tweak func(*genai.GenerateContentConfig)) (string, error) {
	model, contents, cfg := g.buildRequest(req)
	if tweak != nil {
		tweak(cfg)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", errs.NewCompletionError(model, req.Name, fmt.Errorf("Gemini generation failed: %w", err))
	}
	if len(resp.Candidates) == 0 {
		return "", errs.NewCompletionError(model, req.Name, fmt.Errorf("empty response from Gemini"))
	}
	return resp.Text(), nil
}

func (g *Gemini) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		model, contents, cfg := g.buildRequest(req)
		for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				yield("", errs.NewCompletionError(model, req.Name, fmt.Errorf("Gemini streaming error: %w", err)))
				return
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

// buildRequest folds system messages into the system instruction; Gemini
// has no system role in the content list.
func (g *Gemini) buildRequest(req Request) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	temp := req.Temperature
	if temp == nil {
		temp = g.temperature
	}
	if temp != nil {
		cfg.Temperature = genai.Ptr(float32(*temp))
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	return model, contents, cfg
}

var _ Client = (*Gemini)(nil)
