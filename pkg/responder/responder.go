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

// Package responder answers questions from retrieved context alone. It is
// the default path when no remote agent is configured and the fallback
// when one fails.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/envelope"
	"github.com/kadirpekel/ragdispatch/pkg/llm"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
	"github.com/kadirpekel/ragdispatch/pkg/utils"
)

// CitationLabel is reported as agentUsed for citation answers.
const CitationLabel = "Vector Search"

const (
	maxCitations   = 3
	excerptRunes   = 300
	defaultTurns   = 6
	defaultContext = 3000
	defaultHistory = 2000
)

// Result is a local answer and the label to report it under.
type Result struct {
	Text  string
	Label string
}

// Responder builds local answers.
type Responder struct {
	completer     llm.Completer
	counter       *utils.TokenCounter
	historyTurns  int
	historyTokens int
	contextTokens int
}

// Option configures a Responder.
type Option func(*Responder)

// WithCompleter enables the generative variant.
func WithCompleter(c llm.Completer) Option {
	return func(r *Responder) {
		r.completer = c
	}
}

// WithHistoryTurns sets how many past messages reach the completer.
func WithHistoryTurns(n int) Option {
	return func(r *Responder) {
		if n > 0 {
			r.historyTurns = n
		}
	}
}

// WithHistoryTokens caps the token size of the history turns sent to the
// completer. The oldest turns are dropped first.
func WithHistoryTokens(n int) Option {
	return func(r *Responder) {
		if n > 0 {
			r.historyTokens = n
		}
	}
}

// WithContextTokens sets the token budget for passages in the system prompt.
func WithContextTokens(n int) Option {
	return func(r *Responder) {
		if n > 0 {
			r.contextTokens = n
		}
	}
}

// New creates a Responder.
func New(opts ...Option) *Responder {
	r := &Responder{historyTurns: defaultTurns, historyTokens: defaultHistory, contextTokens: defaultContext}
	for _, opt := range opts {
		opt(r)
	}
	if r.completer != nil {
		counter, err := utils.NewTokenCounter(r.completer.Model())
		if err != nil {
			slog.Debug("Using estimated token counts", "model", r.completer.Model(), "reason", err)
		}
		r.counter = counter
	}
	return r
}

// Label is the agentUsed label for answers this responder produces when
// nothing goes wrong.
func (r *Responder) Label() string {
	if r.completer == nil {
		return CitationLabel
	}
	return fmt.Sprintf("AI Assistant (%s)", r.completer.Model())
}

// Respond always returns a non-empty answer. A failing completer degrades
// to citations exactly once.
func (r *Responder) Respond(ctx context.Context, in envelope.Input) Result {
	if r.completer == nil {
		return Result{Text: Cite(in), Label: CitationLabel}
	}

	text, err := r.completer.Complete(ctx, r.systemPrompt(in.Context), r.messages(in))
	if err == nil && strings.TrimSpace(text) != "" {
		return Result{Text: strings.TrimSpace(text), Label: r.Label()}
	}
	if err == nil {
		err = fmt.Errorf("empty completion")
	}
	slog.Warn("Generative answer failed, using citations", "model", r.completer.Model(), "error", err)
	return Result{Text: Cite(in), Label: CitationLabel}
}

func (r *Responder) messages(in envelope.Input) []rag.Message {
	turns := utils.LastTurns(in.History, r.historyTurns)
	for len(turns) > 0 && r.counter.CountMessages(turns) > r.historyTokens {
		turns = turns[1:]
	}
	out := make([]rag.Message, 0, len(turns)+1)
	out = append(out, turns...)
	return append(out, rag.Message{Role: rag.RoleUser, Content: in.Query})
}

func (r *Responder) systemPrompt(items []rag.ContextItem) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about a document collection.\n")

	kept := make([]rag.ContextItem, 0, len(items))
	passages := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Content) != "" {
			kept = append(kept, item)
			passages = append(passages, item.Content)
		}
	}
	passages = r.counter.FitPassages(passages, r.contextTokens)

	if len(passages) == 0 {
		b.WriteString("No relevant passages were found. Answer from general knowledge and say that the collection did not cover the question.")
		return b.String()
	}

	b.WriteString("Answer using the context passages below. If they do not contain the answer, say so. Cite passages by their number.\n\nContext:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "\n[%d] (source: %s)\n%s\n", i+1, kept[i].Source(), strings.TrimSpace(p))
	}
	return b.String()
}
