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

	"google.golang.org/genai"

	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// GeminiCompleter uses the Gemini API through the genai SDK.
type GeminiCompleter struct {
	cfg    *config.LLMConfig
	client *genai.Client
}

// NewGemini creates a Gemini completer.
func NewGemini(cfg *config.LLMConfig) (*GeminiCompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiCompleter{cfg: cfg, client: client}, nil
}

func (c *GeminiCompleter) Model() string { return c.cfg.Model }

// Complete sends the system prompt as a SystemInstruction.
func (c *GeminiCompleter) Complete(ctx context.Context, systemPrompt string, history []rag.Message) (string, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" || m.Role == rag.RoleSystem {
			continue
		}
		role := "user"
		if m.Role == rag.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}

	gc := &genai.GenerateContentConfig{MaxOutputTokens: int32(c.cfg.MaxTokens)}
	if systemPrompt != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	if c.cfg.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*c.cfg.Temperature))
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, gc)
	if err != nil {
		return "", fmt.Errorf("Gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}
