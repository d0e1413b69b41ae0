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

package responder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragdispatch/pkg/envelope"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

type fakeCompleter struct {
	reply   string
	err     error
	system  string
	history []rag.Message
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt string, history []rag.Message) (string, error) {
	f.system = systemPrompt
	f.history = history
	return f.reply, f.err
}

func (f *fakeCompleter) Model() string { return "llama3.2" }

var twoPassages = []rag.ContextItem{
	{ID: "a", Content: "Cats sleep sixteen hours a day.", Score: 0.9, Metadata: map[string]any{"source": "cats.md"}},
	{ID: "b", Content: "Dogs need daily walks.", Score: 0.7, Metadata: map[string]any{"filename": "dogs.txt"}},
}

func TestCite(t *testing.T) {
	text := Cite(envelope.Input{Query: "hello", Context: twoPassages})

	assert.Contains(t, text, "1. [90% match, cats.md]")
	assert.Contains(t, text, "2. [70% match, dogs.txt]")
	assert.Contains(t, text, "Cats sleep sixteen hours a day.")
	assert.Less(t, strings.Index(text, "cats.md"), strings.Index(text, "dogs.txt"))
}

func TestCite_AtMostThree(t *testing.T) {
	items := make([]rag.ContextItem, 5)
	for i := range items {
		items[i] = rag.ContextItem{ID: string(rune('a' + i)), Content: "x", Score: 0.8}
	}
	text := Cite(envelope.Input{Query: "q", Context: items})

	assert.Contains(t, text, "3. [80% match, c]")
	assert.NotContains(t, text, "4. [")
	assert.Contains(t, text, "2 more passages")
}

func TestCite_ExcerptLength(t *testing.T) {
	long := strings.Repeat("é", 500)
	text := Cite(envelope.Input{Query: "q", Context: []rag.ContextItem{{ID: "a", Content: long, Score: 1}}})

	assert.Contains(t, text, strings.Repeat("é", excerptRunes)+"...")
	assert.NotContains(t, text, strings.Repeat("é", excerptRunes+1))
}

func TestCite_NoContextGuidance(t *testing.T) {
	text := Cite(envelope.Input{Query: "unknown topic"})

	assert.Contains(t, text, `"unknown topic"`)
	assert.Contains(t, text, "Uploading documents")
	assert.Contains(t, text, "different collection")
	assert.Contains(t, text, "minimum similarity score")
}

func TestResponder_CitationOnly(t *testing.T) {
	r := New()
	res := r.Respond(context.Background(), envelope.Input{Query: "hello", Context: twoPassages})

	assert.Equal(t, CitationLabel, res.Label)
	assert.Equal(t, CitationLabel, r.Label())
	assert.NotEmpty(t, res.Text)
}

func TestResponder_Generative(t *testing.T) {
	completer := &fakeCompleter{reply: "  Cats sleep a lot.  "}
	r := New(WithCompleter(completer), WithHistoryTurns(2))

	history := []rag.Message{
		{Role: rag.RoleUser, Content: "one"},
		{Role: rag.RoleAssistant, Content: "two"},
		{Role: rag.RoleUser, Content: "three"},
	}
	res := r.Respond(context.Background(), envelope.Input{Query: "cats?", History: history, Context: twoPassages})

	assert.Equal(t, "Cats sleep a lot.", res.Text)
	assert.Equal(t, "AI Assistant (llama3.2)", res.Label)

	require.Len(t, completer.history, 3)
	assert.Equal(t, "two", completer.history[0].Content)
	assert.Equal(t, rag.Message{Role: rag.RoleUser, Content: "cats?"}, completer.history[2])

	assert.Contains(t, completer.system, "[1] (source: cats.md)")
	assert.Contains(t, completer.system, "[2] (source: dogs.txt)")
}

func TestResponder_HistoryBudgetDropsOldestTurns(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	r := New(WithCompleter(completer), WithHistoryTokens(40))

	history := []rag.Message{
		{Role: rag.RoleUser, Content: strings.Repeat("long old question ", 20)},
		{Role: rag.RoleAssistant, Content: "short answer"},
		{Role: rag.RoleUser, Content: "follow up"},
	}
	r.Respond(context.Background(), envelope.Input{Query: "q", History: history})

	require.Len(t, completer.history, 3)
	assert.Equal(t, "short answer", completer.history[0].Content)
	assert.Equal(t, "follow up", completer.history[1].Content)
	assert.Equal(t, "q", completer.history[2].Content)
}

func TestResponder_ContextBudget(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	r := New(WithCompleter(completer), WithContextTokens(5))

	r.Respond(context.Background(), envelope.Input{Query: "q", Context: twoPassages})
	assert.Contains(t, completer.system, "[1]")
	assert.NotContains(t, completer.system, "[2]")
}

func TestResponder_GenerativeFallsBackToCitations(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
	}{
		{name: "error", completer: &fakeCompleter{err: errors.New("connection refused")}},
		{name: "blank", completer: &fakeCompleter{reply: " \n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(WithCompleter(tt.completer)).Respond(context.Background(), envelope.Input{Query: "hello", Context: twoPassages})
			assert.Equal(t, CitationLabel, res.Label)
			assert.Contains(t, res.Text, "cats.md")
		})
	}
}
