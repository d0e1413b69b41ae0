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

// Package toolselect picks the tool to call from a discovered set.
//
// Selection is an ordered chain of strategies. Each strategy either claims
// the tool set or passes; the first claim wins.
package toolselect

import (
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// Kind is the outcome of a selection.
type Kind int

const (
	// KindNone means nothing was selected; callers fall back to a raw webhook POST.
	KindNone Kind = iota
	// KindTool means a single tool should be invoked with tools/call.
	KindTool
	// KindWorkflow means the search-then-execute workflow pattern was detected.
	KindWorkflow
)

func (k Kind) String() string {
	switch k {
	case KindTool:
		return "tool"
	case KindWorkflow:
		return "workflow"
	default:
		return "none"
	}
}

// Selection is the result of running the chain.
type Selection struct {
	Kind     Kind
	Tool     *rag.ToolDescriptor
	Strategy string
	Hint     string
}

// Strategy is one matcher in the chain.
type Strategy interface {
	Name() string
	Select(tools []rag.ToolDescriptor) (Selection, bool)
}

// DefaultHints is the name-affinity preference list, highest priority first.
var DefaultHints = []string{"chat", "message", "ask", "query", "ai", "assistant", "agent", "execute", "run"}

const (
	SearchWorkflowsTool = "search_workflows"
	ExecuteWorkflowTool = "execute_workflow"
)

// Selector runs strategies in order.
type Selector struct {
	strategies []Strategy
}

// New creates a Selector from an explicit chain.
func New(strategies ...Strategy) *Selector {
	return &Selector{strategies: strategies}
}

// Default returns the standard chain: workflow pattern, name hints, first tool.
// An empty hints slice uses DefaultHints.
func Default(hints []string) *Selector {
	if len(hints) == 0 {
		hints = DefaultHints
	}
	return New(
		WorkflowPattern{Search: SearchWorkflowsTool, Execute: ExecuteWorkflowTool},
		NameHint{Hints: hints},
		FirstTool{},
	)
}

// Select picks from tools. An empty set always yields KindNone.
func (s *Selector) Select(tools []rag.ToolDescriptor) Selection {
	if len(tools) == 0 {
		return Selection{Kind: KindNone}
	}
	for _, strategy := range s.strategies {
		if sel, ok := strategy.Select(tools); ok {
			sel.Strategy = strategy.Name()
			return sel
		}
	}
	return Selection{Kind: KindNone}
}

// WorkflowPattern claims tool sets exposing both exact workflow tool names.
type WorkflowPattern struct {
	Search  string
	Execute string
}

func (WorkflowPattern) Name() string { return "workflow-pattern" }

func (p WorkflowPattern) Select(tools []rag.ToolDescriptor) (Selection, bool) {
	var search, execute bool
	for _, t := range tools {
		switch t.Name {
		case p.Search:
			search = true
		case p.Execute:
			execute = true
		}
	}
	if search && execute {
		return Selection{Kind: KindWorkflow}, true
	}
	return Selection{}, false
}

// NameHint claims the first tool, in enumeration order, whose name contains
// any hint case-insensitively.
type NameHint struct {
	Hints []string
}

func (NameHint) Name() string { return "name-hint" }

func (h NameHint) Select(tools []rag.ToolDescriptor) (Selection, bool) {
	for i := range tools {
		name := strings.ToLower(tools[i].Name)
		for _, hint := range h.Hints {
			if hint != "" && strings.Contains(name, strings.ToLower(hint)) {
				return Selection{Kind: KindTool, Tool: &tools[i], Hint: hint}, true
			}
		}
	}
	return Selection{}, false
}

// FirstTool claims the first discovered tool.
type FirstTool struct{}

func (FirstTool) Name() string { return "first-tool" }

func (FirstTool) Select(tools []rag.ToolDescriptor) (Selection, bool) {
	if len(tools) == 0 {
		return Selection{}, false
	}
	return Selection{Kind: KindTool, Tool: &tools[0]}, true
}
