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

// Package llm holds the generative backends of the local responder.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/httpclient"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// Completer produces one assistant reply for a system prompt and a
// conversation whose last message is the user's question.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []rag.Message) (string, error)
	Model() string
}

// New creates the Completer selected by cfg. A nil cfg yields nil.
func New(cfg *config.LLMConfig) (Completer, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Provider {
	case config.LLMProviderOllama:
		return NewOllama(cfg), nil
	case config.LLMProviderOpenAI:
		return NewOpenAI(cfg), nil
	case config.LLMProviderGemini:
		return NewGemini(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func newHTTPClient(cfg *config.LLMConfig, extra ...httpclient.Option) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithMaxRetries(cfg.Retries()),
		httpclient.WithBaseDelay(cfg.RetryDelay),
	}
	if cfg.TLS != nil && !cfg.TLS.IsZero() {
		if cfg.TLS.InsecureSkipVerify {
			slog.Warn("TLS certificate verification disabled for LLM provider", "provider", cfg.Provider)
		}
		opts = append(opts, httpclient.WithTLSConfig(cfg.TLS))
	}
	return httpclient.New(append(opts, extra...)...)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatMessages renders the system prompt and history in the OpenAI-style
// role/content shape shared by Ollama and OpenAI.
func chatMessages(systemPrompt string, history []rag.Message) []chatMessage {
	out := make([]chatMessage, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, chatMessage{Role: string(rag.RoleSystem), Content: systemPrompt})
	}
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := m.Role
		if role == "" {
			role = rag.RoleUser
		}
		out = append(out, chatMessage{Role: string(role), Content: m.Content})
	}
	return out
}
