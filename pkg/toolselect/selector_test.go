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

package toolselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

func tools(names ...string) []rag.ToolDescriptor {
	out := make([]rag.ToolDescriptor, len(names))
	for i, n := range names {
		out[i] = rag.ToolDescriptor{Name: n}
	}
	return out
}

func TestSelector_Select(t *testing.T) {
	tests := []struct {
		name         string
		tools        []rag.ToolDescriptor
		wantKind     Kind
		wantTool     string
		wantStrategy string
	}{
		{
			name:     "empty set",
			tools:    nil,
			wantKind: KindNone,
		},
		{
			name:         "workflow pattern beats hints",
			tools:        tools("chat_bot", "search_workflows", "execute_workflow"),
			wantKind:     KindWorkflow,
			wantStrategy: "workflow-pattern",
		},
		{
			name:         "only one workflow tool is not the pattern",
			tools:        tools("search_workflows", "list_files"),
			wantKind:     KindTool,
			wantTool:     "search_workflows",
			wantStrategy: "first-tool",
		},
		{
			name:         "workflow names must match exactly",
			tools:        tools("Search_Workflows", "execute_workflow_v2"),
			wantKind:     KindTool,
			wantTool:     "execute_workflow_v2",
			wantStrategy: "name-hint",
		},
		{
			name:         "first matching tool in enumeration order wins",
			tools:        tools("list_files", "run_report", "chat"),
			wantKind:     KindTool,
			wantTool:     "run_report",
			wantStrategy: "name-hint",
		},
		{
			name:         "case insensitive hint",
			tools:        tools("get_weather", "AskQuestion"),
			wantKind:     KindTool,
			wantTool:     "AskQuestion",
			wantStrategy: "name-hint",
		},
		{
			name:         "no hint falls back to first tool",
			tools:        tools("get_weather", "list_files"),
			wantKind:     KindTool,
			wantTool:     "get_weather",
			wantStrategy: "first-tool",
		},
	}

	selector := Default(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := selector.Select(tt.tools)
			assert.Equal(t, tt.wantKind, sel.Kind)
			assert.Equal(t, tt.wantStrategy, sel.Strategy)
			if tt.wantTool == "" {
				assert.Nil(t, sel.Tool)
				return
			}
			require.NotNil(t, sel.Tool)
			assert.Equal(t, tt.wantTool, sel.Tool.Name)
		})
	}
}

func TestNameHint_ReportsMatchedHint(t *testing.T) {
	sel, ok := NameHint{Hints: DefaultHints}.Select(tools("send_message"))
	require.True(t, ok)
	assert.Equal(t, "message", sel.Hint)
}

func TestSelector_CustomHints(t *testing.T) {
	selector := Default([]string{"summarize"})
	sel := selector.Select(tools("chat", "summarize_doc"))

	require.NotNil(t, sel.Tool)
	assert.Equal(t, "summarize_doc", sel.Tool.Name)
}

func TestSelector_CustomChain(t *testing.T) {
	selector := New(NameHint{Hints: []string{"nothing-matches"}})
	assert.Equal(t, KindNone, selector.Select(tools("a", "b")).Kind)
	assert.Equal(t, "workflow", KindWorkflow.String())
}
