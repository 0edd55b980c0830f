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

package agent

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/wojcikm/alice/pkg/state"
	"github.com/wojcikm/alice/pkg/store"
)

//go:embed prompts.tmpl
var promptSource string

var prompts = template.Must(template.New("prompts").Parse(promptSource))

// promptData is what the phase templates see.
type promptData struct {
	state.State
	Now           string
	CurrentTask   *store.Task
	CurrentAction *store.Action
	SelectedTool  state.ToolInfo
}

func render(name string, data promptData) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return b.String(), nil
}
