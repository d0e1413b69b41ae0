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

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/ragdispatch/pkg/endpoint"
	"github.com/kadirpekel/ragdispatch/pkg/envelope"
	"github.com/kadirpekel/ragdispatch/pkg/mcpclient"
	"github.com/kadirpekel/ragdispatch/pkg/observability"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
	"github.com/kadirpekel/ragdispatch/pkg/toolselect"
	"github.com/kadirpekel/ragdispatch/pkg/workflow"
)

const defaultExcerptRunes = 200

const (
	PathLocal    = "local"
	PathMCP      = "mcp"
	PathWorkflow = "workflow"
	PathWebhook  = "webhook"

	OutcomeSuccess    = "success"
	OutcomeFallback   = "fallback"
	OutcomeUnresolved = "unresolved"
)

type state string

const (
	stateIdle             state = "idle"
	stateContextRetrieved state = "context_retrieved"
	stateLocalOnly        state = "local_only"
	stateRemoteAttempt    state = "remote_attempt"
	stateSuccess          state = "success"
	stateRemoteFailed     state = "remote_failed"
	stateLocalFallback    state = "local_fallback"
	stateDone             state = "done"
)

// call tracks the state of one Answer invocation.
type call struct {
	state state
	span  trace.Span
	log   *slog.Logger
}

func (c *call) to(next state, attrs ...attribute.KeyValue) {
	from := c.state
	if from == "" {
		from = stateIdle
	}
	c.state = next
	c.log.Debug("Dispatch transition", "from", from, "to", next)
	c.span.AddEvent(string(next), trace.WithAttributes(attrs...))
}

// dispatch runs the agent branch and returns the answer text, the label to
// report, and the metric path and outcome.
func (o *Orchestrator) dispatch(ctx context.Context, c *call, agent *rag.AgentDescriptor, in envelope.Input) (text, label, path, outcome string) {
	if agent.IsZero() || agent.Kind == rag.AgentLocal {
		c.to(stateLocalOnly)
		res := o.respondLocally(ctx, in)
		return res.Text, res.Label, PathLocal, OutcomeSuccess
	}

	name := agent.DisplayName()
	c.span.SetAttributes(
		attribute.String(observability.AttrAgentName, name),
		attribute.String(observability.AttrAgentKind, string(agent.Kind)),
	)

	ep := o.resolve(ctx, agent)
	if !ep.Found() {
		c.log.Warn("Agent has no endpoint, answering locally", "agent", name, "error", rag.ErrEndpointUnresolved)
		c.to(stateLocalOnly)
		res := o.respondLocally(ctx, in)
		return res.Text + "\n\n" + unresolvedNote(name), res.Label, PathLocal, OutcomeUnresolved
	}

	c.to(stateRemoteAttempt, attribute.String(observability.AttrAgentName, name))
	reply, path, err := o.attempt(ctx, agent, ep, in)
	if err == nil {
		c.to(stateSuccess)
		return reply, name, path, OutcomeSuccess
	}

	c.log.Warn("Agent failed, answering locally", "agent", name, "url", ep.URL, "path", path, "error", err)
	recordError(c.span, err)
	c.to(stateRemoteFailed)
	c.to(stateLocalFallback)
	res := o.respondLocally(ctx, in)
	return res.Text + "\n\n" + failureNote(name, err, o.excerptRunes), name + " (fallback)", path, OutcomeFallback
}

func (o *Orchestrator) resolve(ctx context.Context, agent *rag.AgentDescriptor) endpoint.Endpoint {
	_, span := o.tracer.Start(ctx, observability.SpanResolve)
	defer span.End()

	ep := endpoint.Resolve(agent)
	span.SetAttributes(
		attribute.String("rag.endpoint.url_rule", string(ep.URLRule)),
		attribute.String("rag.endpoint.auth_rule", string(ep.AuthRule)),
		attribute.Bool("rag.endpoint.found", ep.Found()),
	)
	return ep
}

// attempt talks to the remote agent. All exchanges share one session.
func (o *Orchestrator) attempt(ctx context.Context, agent *rag.AgentDescriptor, ep endpoint.Endpoint, in envelope.Input) (string, string, error) {
	ctx = mcpclient.WithSession(ctx, mcpclient.NewSession())
	headers := ep.Headers()

	if agent.Kind == rag.AgentWebhook {
		reply, err := o.postWebhook(ctx, ep.URL, headers, in)
		return reply, PathWebhook, err
	}

	sel := o.discover(ctx, ep.URL, headers)
	switch sel.Kind {
	case toolselect.KindWorkflow:
		return o.runWorkflow(ctx, agent, ep.URL, headers, sel, in), PathWorkflow, nil
	case toolselect.KindTool:
		reply, err := o.invoke(ctx, ep.URL, headers, sel, in)
		return reply, PathMCP, err
	default:
		reply, err := o.postWebhook(ctx, ep.URL, headers, in)
		return reply, PathWebhook, err
	}
}

type discovered struct {
	toolselect.Selection
	tools []rag.ToolDescriptor
}

func (o *Orchestrator) discover(ctx context.Context, url string, headers map[string]string) discovered {
	ctx, span := o.tracer.Start(ctx, observability.SpanDiscover)
	defer span.End()

	tools := o.remote.ListTools(ctx, url, headers)
	sel := o.selector.Select(tools)

	span.SetAttributes(
		attribute.Int("rag.tools.count", len(tools)),
		attribute.String(observability.AttrStrategy, sel.Strategy),
	)
	slog.Debug("Selected dispatch", "url", url, "tools", len(tools), "kind", sel.Kind, "strategy", sel.Strategy, "hint", sel.Hint)
	return discovered{Selection: sel, tools: tools}
}

func (o *Orchestrator) invoke(ctx context.Context, url string, headers map[string]string, sel discovered, in envelope.Input) (string, error) {
	ctx, span := o.tracer.Start(ctx, observability.SpanInvoke,
		trace.WithAttributes(attribute.String(observability.AttrToolName, sel.Tool.Name)))
	defer span.End()

	reply, err := o.remote.CallTool(ctx, url, sel.Tool.Name, envelope.ToolArguments(in, sel.Tool.InputSchema), headers)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	return envelope.Normalize(reply), nil
}

func (o *Orchestrator) postWebhook(ctx context.Context, url string, headers map[string]string, in envelope.Input) (string, error) {
	ctx, span := o.tracer.Start(ctx, observability.SpanInvoke,
		trace.WithAttributes(attribute.String(observability.AttrPath, PathWebhook)))
	defer span.End()

	reply, err := o.remote.PostJSON(ctx, url, envelope.WebhookBody(in), headers)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	return envelope.Normalize(reply), nil
}

// runWorkflow cannot fail: runner failures come back as remediation text.
func (o *Orchestrator) runWorkflow(ctx context.Context, agent *rag.AgentDescriptor, url string, headers map[string]string, sel discovered, in envelope.Input) string {
	ctx, span := o.tracer.Start(ctx, observability.SpanWorkflow)
	defer span.End()

	res := o.workflows.Run(ctx, workflow.Target{
		URL:       url,
		Headers:   headers,
		AgentName: agent.DisplayName(),
		Tools:     sel.tools,
	}, in)

	span.SetAttributes(attribute.String(observability.AttrOutcome, string(res.Outcome)))
	if res.Workflow != nil {
		span.SetAttributes(attribute.String("rag.workflow.id", res.Workflow.ID))
	}
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	return res.Text
}

func unresolvedNote(name string) string {
	return fmt.Sprintf("Note: agent %q is configured but unreachable: no endpoint URL was found in its configuration.", name)
}

func failureNote(name string, err error, maxRunes int) string {
	return fmt.Sprintf("(Note: agent %q failed: %s)", name, excerpt(err.Error(), maxRunes))
}

func excerpt(s string, maxRunes int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxRunes {
		return string(r)
	}
	return string(r[:maxRunes])
}
