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

// OpenAICompleter talks to an OpenAI-compatible /chat/completions endpoint.
type OpenAICompleter struct {
	cfg     *config.LLMConfig
	client  *httpclient.Client
	baseURL string
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAI creates an OpenAI completer. Rate limit headers drive the
// retry delay.
func NewOpenAI(cfg *config.LLMConfig) *OpenAICompleter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAICompleter{
		cfg:     cfg,
		client:  newHTTPClient(cfg, httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders)),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *OpenAICompleter) Model() string { return c.cfg.Model }

// Complete returns the first choice's content.
func (c *OpenAICompleter) Complete(ctx context.Context, systemPrompt string, history []rag.Message) (string, error) {
	req := openAIRequest{
		Model:       c.cfg.Model,
		Messages:    chatMessages(systemPrompt, history),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	var resp openAIResponse
	if err := c.client.PostJSON(ctx, c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai API error (%s): %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
