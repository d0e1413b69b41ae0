// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package envelope builds best-effort request payloads for remote agents
// whose input binding is unknown, and reduces their heterogeneous replies
// to plain text.
package envelope

import (
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// Input is everything a remote agent may want to see.
type Input struct {
	Query   string
	History []rag.Message
	Context []rag.ContextItem
}

// queryKeys are the argument names tool servers commonly bind a prompt to.
var queryKeys = []string{"query", "message", "input", "question", "prompt", "text", "chatInput"}

// JoinContext joins passage contents with blank lines.
func JoinContext(items []rag.ContextItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if c := strings.TrimSpace(item.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n")
}

// HistoryPayload converts history into a JSON-friendly list.
func HistoryPayload(history []rag.Message) []map[string]string {
	out := make([]map[string]string, 0, len(history))
	for _, m := range history {
		out = append(out, map[string]string{"role": string(m.Role), "content": m.Content})
	}
	return out
}

// ToolArguments builds tools/call arguments carrying the query under every
// plausible key. When schema declares properties and at least one of them
// is a known key, only declared keys are kept.
func ToolArguments(in Input, schema map[string]any) map[string]any {
	args := make(map[string]any, len(queryKeys)+2)
	for _, k := range queryKeys {
		args[k] = in.Query
	}
	args["context"] = JoinContext(in.Context)
	args["history"] = HistoryPayload(in.History)

	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return args
	}

	filtered := make(map[string]any, len(props))
	for k, v := range args {
		if _, declared := props[k]; declared {
			filtered[k] = v
		}
	}
	if !hasQueryKey(filtered) {
		return args
	}
	return filtered
}

func hasQueryKey(args map[string]any) bool {
	for _, k := range queryKeys {
		if _, ok := args[k]; ok {
			return true
		}
	}
	return false
}

// WebhookBody is the raw webhook contract.
func WebhookBody(in Input) map[string]any {
	return map[string]any{
		"query":   in.Query,
		"message": in.Query,
		"history": HistoryPayload(in.History),
		"context": JoinContext(in.Context),
	}
}

// WorkflowInputs is the payload handed to a workflow execution.
func WorkflowInputs(in Input) map[string]any {
	return map[string]any{
		"message":   in.Query,
		"query":     in.Query,
		"input":     in.Query,
		"chatInput": in.Query,
		"history":   HistoryPayload(in.History),
		"context":   JoinContext(in.Context),
	}
}
