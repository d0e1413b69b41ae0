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

// Package workflow runs the two-step search_workflows / execute_workflow
// sequence exposed by workflow-automation servers.
//
// The runner never returns an error to its caller: failures become a
// remediation message the end user can act on.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/envelope"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
	"github.com/kadirpekel/ragdispatch/pkg/toolselect"
)

// Caller invokes a remote tool.
type Caller interface {
	CallTool(ctx context.Context, url, name string, args map[string]any, headers map[string]string) (any, error)
}

// Target is the server the flow runs against.
type Target struct {
	URL       string
	Headers   map[string]string
	AgentName string
	Tools     []rag.ToolDescriptor
}

// Outcome classifies a run.
type Outcome string

const (
	OutcomeExecuted    Outcome = "executed"
	OutcomeNoWorkflows Outcome = "no_workflows"
	OutcomeFailed      Outcome = "failed"
)

// Result is what a run produced. Text is always user-presentable.
type Result struct {
	Text     string
	Outcome  Outcome
	Workflow *Workflow
	Err      error
}

// Runner executes the workflow flow.
type Runner struct {
	caller      Caller
	parsers     []Parser
	searchTool  string
	executeTool string
}

// Option configures a Runner.
type Option func(*Runner)

// WithParsers replaces the parser chain.
func WithParsers(parsers ...Parser) Option {
	return func(r *Runner) {
		if len(parsers) > 0 {
			r.parsers = parsers
		}
	}
}

// WithToolNames overrides the search and execute tool names.
func WithToolNames(search, execute string) Option {
	return func(r *Runner) {
		if search != "" {
			r.searchTool = search
		}
		if execute != "" {
			r.executeTool = execute
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(caller Caller, opts ...Option) *Runner {
	r := &Runner{
		caller:      caller,
		parsers:     DefaultParsers,
		searchTool:  toolselect.SearchWorkflowsTool,
		executeTool: toolselect.ExecuteWorkflowTool,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run searches for active workflows and executes the first one.
func (r *Runner) Run(ctx context.Context, target Target, in envelope.Input) Result {
	log := slog.With("agent", target.AgentName, "url", target.URL)

	listing, err := r.caller.CallTool(ctx, target.URL, r.searchTool, map[string]any{"active": true}, target.Headers)
	if err != nil {
		log.Warn("Workflow search failed", "error", err)
		return r.failed(target, err)
	}

	workflows := Parse(envelope.Normalize(listing), r.parsers...)
	if len(workflows) == 0 {
		log.Info("No active workflows found")
		return Result{Text: noWorkflowsMessage(target), Outcome: OutcomeNoWorkflows}
	}

	chosen := workflows[0]
	log.Debug("Executing workflow", "workflow_id", chosen.ID, "workflow_name", chosen.Name, "candidates", len(workflows))

	inputs := envelope.WorkflowInputs(in)
	inputs["type"] = "chat"

	reply, err := r.caller.CallTool(ctx, target.URL, r.executeTool, map[string]any{
		"workflowId": chosen.ID,
		"inputs":     inputs,
	}, target.Headers)
	if err != nil {
		log.Warn("Workflow execution failed", "workflow_id", chosen.ID, "error", err)
		res := r.failed(target, err)
		res.Workflow = &chosen
		return res
	}

	return Result{Text: envelope.Normalize(reply), Outcome: OutcomeExecuted, Workflow: &chosen}
}

func (r *Runner) failed(target Target, err error) Result {
	return Result{Text: remediationMessage(target, err), Outcome: OutcomeFailed, Err: err}
}

func noWorkflowsMessage(target Target) string {
	names := make([]string, 0, len(target.Tools))
	for _, t := range target.Tools {
		names = append(names, t.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "No active workflows are available on %q.", displayName(target))
	if len(names) > 0 {
		fmt.Fprintf(&b, " The server exposes these tools: %s.", strings.Join(names, ", "))
	}
	b.WriteString(" Activate a workflow and make it available to MCP clients, then ask again.")
	return b.String()
}

func remediationMessage(target Target, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The workflow server %q could not run a workflow for this question", displayName(target))
	if err != nil {
		fmt.Fprintf(&b, " (%s)", excerpt(err.Error(), 200))
	}
	b.WriteString(".\n\nTo fix this, use one of these setups:\n")
	b.WriteString("1. Open the workflow settings, enable \"Available in MCP\" and make sure the workflow is active.\n")
	b.WriteString("2. Add a Webhook trigger to the workflow and configure this agent as a webhook agent pointing at the trigger's production URL.")
	return b.String()
}

func displayName(target Target) string {
	if target.AgentName != "" {
		return target.AgentName
	}
	return target.URL
}

func excerpt(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max]) + "..."
}
