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

package observability

// Span names.
const (
	SpanTurn          = "alice.turn"
	SpanPhase         = "alice.phase"
	SpanLLMRequest    = "alice.llm_request"
	SpanToolExecution = "alice.tool_execution"
	SpanMemorySearch  = "alice.memory_search"
	SpanHTTPRequest   = "http.request"

	EventStateChange = "state.change"
)

// Attribute keys.
const (
	AttrConversationUUID = "alice.conversation_uuid"
	AttrPhase            = "alice.phase"
	AttrModel            = "llm.model"
	AttrOperation        = "llm.operation"
	AttrTool             = "tool.name"
	AttrAction           = "tool.action"
	AttrQuery            = "memory.query"
	AttrLimit            = "memory.limit"
	AttrStatePath        = "state.path"
	AttrStateValue       = "state.value"
	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrErrorType        = "error.type"
)

const (
	DefaultServiceName  = "alice"
	DefaultNamespace    = "alice"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0
)
