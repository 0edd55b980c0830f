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

package tool

import (
	"context"

	"github.com/wojcikm/alice/pkg/document"
)

// FinalAnswer is the tool the planner selects to stop the loop.
const FinalAnswer = "final_answer"

type finalAnswer struct{}

// NewFinalAnswer returns the final_answer tool. The agent answers itself
// when it is selected, so Execute only echoes the payload.
func NewFinalAnswer() Tool { return finalAnswer{} }

func (finalAnswer) Name() string { return FinalAnswer }

func (finalAnswer) Description() string {
	return "Use when everything needed to answer the user has been gathered, or nothing more can be done."
}

func (finalAnswer) Instruction() string {
	return `Action "answer" with payload {"notes": string}: optional notes for the final reply.`
}

func (finalAnswer) Execute(ctx context.Context, call Call) (*document.Document, error) {
	return Actions{"answer": Action(func(_ context.Context, call Call, p struct {
		Notes string `json:"notes"`
	}) (*document.Document, error) {
		return document.New(p.Notes, document.Metadata{
			Type:    document.ContentText,
			Variant: document.FullMetadata{},
			Name:    FinalAnswer,
			Source:  document.SourceAssistant,
		}), nil
	})}.Dispatch(ctx, FinalAnswer, call)
}
