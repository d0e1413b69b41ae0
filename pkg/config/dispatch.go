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

package config

import (
	"fmt"
	"time"
)

// RetrievalConfig configures context retrieval.
type RetrievalConfig struct {
	// DefaultCollection is searched when a request names none.
	DefaultCollection string `yaml:"default_collection,omitempty" json:"default_collection,omitempty"`

	// TopK applies when a request leaves topK at zero.
	TopK int `yaml:"top_k,omitempty" json:"top_k,omitempty" jsonschema:"minimum=1,default=5"`

	// MinScore applies when a request leaves minScore unset.
	MinScore *float64 `yaml:"min_score,omitempty" json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,default=0.5"`

	// MaxTopK caps the number of passages any request may ask for.
	MaxTopK int `yaml:"max_top_k,omitempty" json:"max_top_k,omitempty" jsonschema:"minimum=1,default=50"`
}

// SetDefaults applies default values.
func (c *RetrievalConfig) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.MinScore == nil {
		s := 0.5
		c.MinScore = &s
	}
	if c.MaxTopK == 0 {
		c.MaxTopK = 50
	}
}

// Validate checks the retrieval configuration.
func (c *RetrievalConfig) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.MinScore != nil && (*c.MinScore < 0 || *c.MinScore > 1) {
		return fmt.Errorf("min_score must be between 0 and 1")
	}
	if c.MaxTopK < c.TopK {
		return fmt.Errorf("max_top_k (%d) must be at least top_k (%d)", c.MaxTopK, c.TopK)
	}
	return nil
}

// DispatchConfig tunes remote agent dispatch and the local responder.
type DispatchConfig struct {
	// Timeout bounds every round trip to a remote agent.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// ToolHints is the tool name preference list, highest priority first.
	ToolHints []string `yaml:"tool_hints,omitempty" json:"tool_hints,omitempty"`

	SearchWorkflowsTool string `yaml:"search_workflows_tool,omitempty" json:"search_workflows_tool,omitempty"`
	ExecuteWorkflowTool string `yaml:"execute_workflow_tool,omitempty" json:"execute_workflow_tool,omitempty"`

	// HistoryTurns is how many recent turns the generative responder sends.
	HistoryTurns int `yaml:"history_turns,omitempty" json:"history_turns,omitempty" jsonschema:"minimum=0,default=6"`

	// HistoryTokens caps the token size of the history sent with a query.
	// The oldest turns are dropped first.
	HistoryTokens int `yaml:"history_tokens,omitempty" json:"history_tokens,omitempty" jsonschema:"minimum=1,default=2000"`

	// ContextTokens is the passage budget of the generative responder.
	ContextTokens int `yaml:"context_tokens,omitempty" json:"context_tokens,omitempty" jsonschema:"minimum=1,default=3000"`

	// ErrorExcerpt caps the remote error text shown in fallback notes.
	ErrorExcerpt int `yaml:"error_excerpt,omitempty" json:"error_excerpt,omitempty" jsonschema:"minimum=1,default=200"`
}

// SetDefaults applies default values.
func (c *DispatchConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SearchWorkflowsTool == "" {
		c.SearchWorkflowsTool = "search_workflows"
	}
	if c.ExecuteWorkflowTool == "" {
		c.ExecuteWorkflowTool = "execute_workflow"
	}
	if c.HistoryTurns == 0 {
		c.HistoryTurns = 6
	}
	if c.HistoryTokens == 0 {
		c.HistoryTokens = 2000
	}
	if c.ContextTokens == 0 {
		c.ContextTokens = 3000
	}
	if c.ErrorExcerpt == 0 {
		c.ErrorExcerpt = 200
	}
}

// Validate checks the dispatch configuration.
func (c *DispatchConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if c.HistoryTurns < 0 {
		return fmt.Errorf("history_turns must be non-negative")
	}
	if c.HistoryTokens < 0 {
		return fmt.Errorf("history_tokens must be non-negative")
	}
	if c.SearchWorkflowsTool == c.ExecuteWorkflowTool {
		return fmt.Errorf("search_workflows_tool and execute_workflow_tool must differ")
	}
	return nil
}
