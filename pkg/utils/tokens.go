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

// Package utils holds small helpers shared by the responders.
package utils

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

const defaultEncoding = "cl100k_base"

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// TokenCounter counts tokens for a model. When no BPE encoding can be
// loaded it falls back to a four-characters-per-token estimate, so a
// counter is always usable.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewTokenCounter returns a counter for model. The error reports why the
// exact encoding was unavailable; the returned counter is valid either way.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return &TokenCounter{model: model}, err
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Model returns the model name the counter was built for.
func (tc *TokenCounter) Model() string {
	return tc.model
}

// Exact reports whether counts come from a real BPE encoding.
func (tc *TokenCounter) Exact() bool {
	return tc != nil && tc.encoding != nil
}

// Count returns the token count of text.
func (tc *TokenCounter) Count(text string) int {
	if !tc.Exact() {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessages counts a chat transcript including per-message framing.
func (tc *TokenCounter) CountMessages(messages []rag.Message) int {
	total := 3 // reply priming
	for _, m := range messages {
		total += 3 + tc.Count(string(m.Role)) + tc.Count(m.Content)
	}
	return total
}

// Truncate cuts text to at most maxTokens tokens.
func (tc *TokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if !tc.Exact() {
		r := []rune(text)
		if len(r) <= maxTokens*4 {
			return text
		}
		return string(r[:maxTokens*4])
	}
	tokens := tc.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return tc.encoding.Decode(tokens[:maxTokens])
}

// FitPassages keeps passages in order until the budget is spent. The
// passage that crosses the budget is truncated; later ones are dropped.
func (tc *TokenCounter) FitPassages(passages []string, budget int) []string {
	var out []string
	used := 0
	for _, p := range passages {
		if used >= budget {
			break
		}
		n := tc.Count(p)
		if used+n <= budget {
			out = append(out, p)
			used += n
			continue
		}
		if cut := strings.TrimSpace(tc.Truncate(p, budget-used)); cut != "" {
			out = append(out, cut)
		}
		break
	}
	return out
}

// LastTurns returns the most recent n messages of history.
func LastTurns(history []rag.Message, n int) []rag.Message {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// EstimateTokens is the four-characters-per-token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
