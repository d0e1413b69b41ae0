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

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/httpclient"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// OllamaCompleter talks to Ollama's /api/chat endpoint.
type OllamaCompleter struct {
	cfg     *config.LLMConfig
	client  *httpclient.Client
	baseURL string
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// NewOllama creates an Ollama completer.
func NewOllama(cfg *config.LLMConfig) *OllamaCompleter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaCompleter{
		cfg:     cfg,
		client:  newHTTPClient(cfg),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *OllamaCompleter) Model() string { return c.cfg.Model }

// Complete runs one non-streaming chat turn.
func (c *OllamaCompleter) Complete(ctx context.Context, systemPrompt string, history []rag.Message) (string, error) {
	req := ollamaRequest{
		Model:    c.cfg.Model,
		Messages: chatMessages(systemPrompt, history),
		Options:  &ollamaOptions{NumPredict: c.cfg.MaxTokens},
	}
	if c.cfg.Temperature != nil {
		req.Options.Temperature = *c.cfg.Temperature
	}

	var resp ollamaResponse
	if err := c.client.PostJSON(ctx, c.baseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama API error: %s", resp.Error)
	}
	return resp.Message.Content, nil
}
