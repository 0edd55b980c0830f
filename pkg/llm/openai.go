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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/httpclient"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI talks to an OpenAI compatible /chat/completions endpoint.
type OpenAI struct {
	client      *httpclient.Client
	apiKey      string
	baseURL     string
	model       string
	temperature *float64
	maxTokens   int
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []Message             `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	Stream         bool                  `json:"stream"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func NewOpenAI(cfg config.LLMConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAI{
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Text(ctx context.Context, req Request) (string, error) {
	return o.complete(ctx, req, nil)
}

func (o *OpenAI) JSON(ctx context.Context, req Request, schema map[string]any) (string, error) {
	format := &openAIResponseFormat{Type: "json_object"}
	if schema != nil {
		format = &openAIResponseFormat{
			Type:       "json_schema",
			JSONSchema: &openAIJSONSchema{Name: "response", Schema: schema},
		}
	}
	return o.complete(ctx, req, format)
}

func (o *OpenAI) complete(ctx context.Context, req Request, format *openAIResponseFormat) (string, error) {
	body := o.buildRequest(req, false)
	body.ResponseFormat = format

	resp, err := o.send(ctx, body)
	if err != nil {
		return "", errs.NewCompletionError(body.Model, req.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.NewCompletionError(body.Model, req.Name, fmt.Errorf("failed to read response: %w", err))
	}

	var decoded openAIResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", errs.NewCompletionError(body.Model, req.Name, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if decoded.Error != nil {
		return "", errs.NewCompletionError(body.Model, req.Name, fmt.Errorf("OpenAI API error: %s", decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 {
		return "", errs.NewCompletionError(body.Model, req.Name, fmt.Errorf("no response choices returned"))
	}
	return decoded.Choices[0].Message.Content, nil
}

func (o *OpenAI) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body := o.buildRequest(req, true)
		fail := func(err error) {
			yield("", errs.NewCompletionError(body.Model, req.Name, err))
		}

		resp, err := o.send(ctx, body)
		if err != nil {
			fail(err)
			return
		}
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				if err != io.EOF {
					fail(fmt.Errorf("failed to read stream: %w", err))
				}
				return
			}

			line = bytes.TrimSpace(line)
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			line = line[6:]
			if bytes.Equal(line, []byte("[DONE]")) {
				return
			}

			var chunk openAIResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				fail(fmt.Errorf("API error: %s", chunk.Error.Message))
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}

func (o *OpenAI) buildRequest(req Request, stream bool) openAIRequest {
	body := openAIRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if body.Model == "" {
		body.Model = o.model
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = o.maxTokens
	}
	if body.Temperature == nil {
		body.Temperature = o.temperature
	}
	return body
}

// send posts the request and turns non-2xx responses into errors.
func (o *OpenAI) send(ctx context.Context, body openAIRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		var decoded openAIResponse
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != nil {
			return nil, fmt.Errorf("API request failed with status %d: %s (type: %s)",
				resp.StatusCode, decoded.Error.Message, decoded.Error.Type)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(raw))
	}
	return resp, nil
}

var _ Client = (*OpenAI)(nil)
