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

// Package errs defines the error taxonomy shared by the runtime packages.
//
// ValidationError and NotFoundError are fatal to a turn. ToolExecutionError
// is absorbed by the agent loop and turned into an error document.
// CompletionError wraps failures of the language model collaborator.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input or state.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := "validation failed"
	if e.Field != "" {
		msg += fmt.Sprintf(" for %s", e.Field)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ToolExecutionError wraps any failure returned by a tool.
type ToolExecutionError struct {
	Tool   string
	Action string
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s (%s) failed: %v", e.Tool, e.Action, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// NewToolExecutionError creates a ToolExecutionError.
func NewToolExecutionError(tool, action string, err error) *ToolExecutionError {
	return &ToolExecutionError{Tool: tool, Action: action, Err: err}
}

// CompletionError reports a failed or unparsable model completion.
type CompletionError struct {
	Model     string
	Operation string
	Err       error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion %s (model %s) failed: %v", e.Operation, e.Model, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// NewCompletionError creates a CompletionError.
func NewCompletionError(model, operation string, err error) *CompletionError {
	return &CompletionError{Model: model, Operation: operation, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsToolExecution(err error) bool {
	var target *ToolExecutionError
	return errors.As(err, &target)
}

func IsCompletion(err error) bool {
	var target *CompletionError
	return errors.As(err, &target)
}
