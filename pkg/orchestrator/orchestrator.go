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

// Package orchestrator answers questions by routing them to the local
// responder or to a remote agent, falling back to the local responder
// whenever the remote side fails.
//
// Answer only returns an error for invalid requests. Every other failure
// is absorbed into the response text.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kadirpekel/ragdispatch/pkg/agentstore"
	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/envelope"
	"github.com/kadirpekel/ragdispatch/pkg/mcpclient"
	"github.com/kadirpekel/ragdispatch/pkg/observability"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
	"github.com/kadirpekel/ragdispatch/pkg/responder"
	"github.com/kadirpekel/ragdispatch/pkg/retrieval"
	"github.com/kadirpekel/ragdispatch/pkg/toolselect"
	"github.com/kadirpekel/ragdispatch/pkg/workflow"
)

// Remote is the transport used to reach agents.
type Remote interface {
	ListTools(ctx context.Context, url string, headers map[string]string) []rag.ToolDescriptor
	CallTool(ctx context.Context, url, name string, args map[string]any, headers map[string]string) (any, error)
	PostJSON(ctx context.Context, url string, body any, headers map[string]string) (any, error)
}

// Local produces answers without a remote agent.
type Local interface {
	Respond(ctx context.Context, in envelope.Input) responder.Result
	Label() string
}

// AgentGetter looks up stored agents by id.
type AgentGetter interface {
	Get(ctx context.Context, id string) (*agentstore.Agent, error)
}

// Orchestrator is immutable after New and safe for concurrent use.
type Orchestrator struct {
	searcher  retrieval.Searcher
	local     Local
	remote    Remote
	selector  *toolselect.Selector
	workflows *workflow.Runner
	agents    AgentGetter
	metrics   observability.Metrics
	tracer    trace.Tracer

	searchTool   string
	executeTool  string
	topK         int
	minScore     *float64
	excerptRunes int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSearcher enables context retrieval. Without one, requests carry no context.
func WithSearcher(s retrieval.Searcher) Option {
	return func(o *Orchestrator) {
		o.searcher = s
	}
}

// WithLocal replaces the local responder.
func WithLocal(l Local) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.local = l
		}
	}
}

// WithRemote replaces the transport.
func WithRemote(r Remote) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.remote = r
		}
	}
}

// WithSelector replaces the tool selection chain.
func WithSelector(s *toolselect.Selector) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.selector = s
		}
	}
}

// WithAgentStore lets requests refer to agents by id.
func WithAgentStore(a AgentGetter) Option {
	return func(o *Orchestrator) {
		o.agents = a
	}
}

func WithMetrics(m observability.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithRetrieval sets the topK and minScore used when a request leaves them unset.
func WithRetrieval(cfg config.RetrievalConfig) Option {
	return func(o *Orchestrator) {
		if cfg.TopK > 0 {
			o.topK = cfg.TopK
		}
		if cfg.MinScore != nil {
			o.minScore = cfg.MinScore
		}
	}
}

// WithDispatch applies tool hints, workflow tool names and the error
// excerpt length. The transport timeout is configured on the Remote.
func WithDispatch(cfg config.DispatchConfig) Option {
	return func(o *Orchestrator) {
		hints := cfg.ToolHints
		if len(hints) == 0 {
			hints = toolselect.DefaultHints
		}
		search, execute := cfg.SearchWorkflowsTool, cfg.ExecuteWorkflowTool
		if search == "" {
			search = toolselect.SearchWorkflowsTool
		}
		if execute == "" {
			execute = toolselect.ExecuteWorkflowTool
		}
		o.selector = toolselect.New(
			toolselect.WorkflowPattern{Search: search, Execute: execute},
			toolselect.NameHint{Hints: hints},
			toolselect.FirstTool{},
		)
		o.searchTool, o.executeTool = search, execute
		if cfg.ErrorExcerpt > 0 {
			o.excerptRunes = cfg.ErrorExcerpt
		}
	}
}

// New creates an Orchestrator. Unset collaborators default to a citation
// responder, a fresh transport client and the default selector.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		local:        responder.New(),
		remote:       mcpclient.New(),
		selector:     toolselect.Default(nil),
		metrics:      observability.NoopMetrics{},
		tracer:       noop.NewTracerProvider().Tracer(observability.TracerName),
		topK:         rag.DefaultTopK,
		excerptRunes: defaultExcerptRunes,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.workflows = workflow.NewRunner(o.remote, workflow.WithToolNames(o.searchTool, o.executeTool))
	return o
}

// Answer runs one request to completion. The returned error is always a
// *rag.ValidationError; every other failure yields a response.
func (o *Orchestrator) Answer(ctx context.Context, req *rag.Request) (*rag.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r := *req
	if r.TopK == 0 {
		r.TopK = o.topK
	}
	if r.MinScore == nil {
		r.MinScore = o.minScore
	}
	r.SetDefaults()

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, observability.SpanAnswer,
		trace.WithAttributes(attribute.String(observability.AttrCollection, r.Collection)))
	defer span.End()

	c := &call{span: span, log: slog.With("query_len", len(r.Query))}

	items := o.retrieve(ctx, &r)
	c.to(stateContextRetrieved, attribute.Int(observability.AttrContextLen, len(items)))

	in := envelope.Input{Query: r.Query, History: r.History, Context: items}
	agent := o.agent(ctx, &r)

	text, label, path, outcome := o.dispatch(ctx, c, agent, in)
	c.to(stateDone)

	span.SetAttributes(
		attribute.String(observability.AttrPath, path),
		attribute.String(observability.AttrOutcome, outcome),
	)
	o.metrics.RecordDispatch(ctx, path, outcome, time.Since(start))

	return &rag.Response{Response: text, Context: items, AgentUsed: label}, nil
}

// retrieve never fails: retrieval errors degrade to no context.
func (o *Orchestrator) retrieve(ctx context.Context, r *rag.Request) []rag.ContextItem {
	items := []rag.ContextItem{}
	if o.searcher == nil {
		return items
	}

	ctx, span := o.tracer.Start(ctx, observability.SpanRetrieve,
		trace.WithAttributes(attribute.String(observability.AttrCollection, r.Collection)))
	defer span.End()

	found, err := o.searcher.Search(ctx, r.Collection, retrieval.Query{
		Text:            r.Query,
		TopK:            r.TopK,
		MinScore:        r.Threshold(),
		IncludeContent:  true,
		IncludeMetadata: true,
	})
	o.metrics.RecordRetrieval(ctx, len(found), err)
	if err != nil {
		span.RecordError(err)
		slog.Warn("Retrieval failed, continuing without context", "collection", r.Collection, "error", err)
		return items
	}

	items = append(items, found...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > r.TopK {
		items = items[:r.TopK]
	}
	span.SetAttributes(attribute.Int(observability.AttrContextLen, len(items)))
	return items
}

// agent returns the descriptor for r with a normalised kind, or nil when
// the request should be answered locally.
func (o *Orchestrator) agent(ctx context.Context, r *rag.Request) *rag.AgentDescriptor {
	agent := r.Agent
	if agent == nil && r.AgentID != "" {
		if o.agents == nil {
			slog.Warn("Request names an agent id but no agent store is configured", "agent_id", r.AgentID)
			return nil
		}
		stored, err := o.agents.Get(ctx, r.AgentID)
		if err != nil {
			slog.Warn("Agent lookup failed, answering locally", "agent_id", r.AgentID, "error", err)
			return nil
		}
		agent = &stored.AgentDescriptor
	}
	if agent == nil {
		return nil
	}

	kind, err := rag.ParseAgentKind(string(agent.Kind))
	if err != nil {
		slog.Warn("Unknown agent kind, answering locally", "agent", agent.DisplayName(), "error", err)
		return nil
	}
	normalized := *agent
	normalized.Kind = kind
	return &normalized
}

func (o *Orchestrator) respondLocally(ctx context.Context, in envelope.Input) responder.Result {
	ctx, span := o.tracer.Start(ctx, observability.SpanLocal)
	defer span.End()
	return o.local.Respond(ctx, in)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
