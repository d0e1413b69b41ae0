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

package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

func TestResolve_URLPriority(t *testing.T) {
	tests := []struct {
		name     string
		agent    *rag.AgentDescriptor
		wantURL  string
		wantRule Rule
	}{
		{
			name: "direct endpoint beats argument URL",
			agent: &rag.AgentDescriptor{
				Endpoint: "https://direct.example/mcp",
				Config:   map[string]any{"args": []any{"--sse", "http://args.example/sse"}},
			},
			wantURL:  "https://direct.example/mcp",
			wantRule: RuleDirect,
		},
		{
			name: "webhook URL beats url and baseUrl",
			agent: &rag.AgentDescriptor{Config: map[string]any{
				"webhookUrl": "https://hook.example/a",
				"url":        "https://url.example",
				"baseUrl":    "https://base.example",
			}},
			wantURL:  "https://hook.example/a",
			wantRule: RuleWebhookURL,
		},
		{
			name:     "snake case webhook key",
			agent:    &rag.AgentDescriptor{Config: map[string]any{"webhook_url": "https://hook.example/b"}},
			wantURL:  "https://hook.example/b",
			wantRule: RuleWebhookURL,
		},
		{
			name: "url beats baseUrl",
			agent: &rag.AgentDescriptor{Config: map[string]any{
				"url":     "https://url.example",
				"baseUrl": "https://base.example",
			}},
			wantURL:  "https://url.example",
			wantRule: RuleURL,
		},
		{
			name:     "baseUrl alone",
			agent:    &rag.AgentDescriptor{Config: map[string]any{"baseUrl": "https://base.example"}},
			wantURL:  "https://base.example",
			wantRule: RuleBaseURL,
		},
		{
			name: "transport flag beats earlier bare URL argument",
			agent: &rag.AgentDescriptor{Config: map[string]any{
				"args": []any{"mcp-remote", "https://first.example", "--streamableHttp", "https://flag.example/mcp"},
			}},
			wantURL:  "https://flag.example/mcp",
			wantRule: RuleTransportFlag,
		},
		{
			name: "first URL-looking argument",
			agent: &rag.AgentDescriptor{Config: map[string]any{
				"command": "npx",
				"args":    []any{"-y", "mcp-remote", "https://remote.example/mcp", "https://second.example"},
			}},
			wantURL:  "https://remote.example/mcp",
			wantRule: RuleArgURL,
		},
		{
			name: "args given as a single string",
			agent: &rag.AgentDescriptor{Config: map[string]any{
				"args": "npx -y mcp-remote  https://remote.example/mcp",
			}},
			wantURL:  "https://remote.example/mcp",
			wantRule: RuleArgURL,
		},
		{
			name: "mcpServers entry is unwrapped",
			agent: &rag.AgentDescriptor{Config: map[string]any{
				"mcpServers": map[string]any{
					"n8n": map[string]any{
						"command": "npx",
						"args":    []any{"-y", "supergateway", "--sse", "https://n8n.example/mcp/sse"},
					},
				},
			}},
			wantURL:  "https://n8n.example/mcp/sse",
			wantRule: RuleTransportFlag,
		},
		{
			name:     "nil agent",
			agent:    nil,
			wantURL:  "",
			wantRule: RuleNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := Resolve(tt.agent)
			assert.Equal(t, tt.wantURL, ep.URL)
			assert.Equal(t, tt.wantRule, ep.URLRule)
			assert.Equal(t, tt.wantURL != "", ep.Found())
		})
	}
}

func TestResolve_ArgumentEmbeddedExtraction(t *testing.T) {
	agent := &rag.AgentDescriptor{
		Kind: rag.AgentMCP,
		Config: map[string]any{
			"args": []any{"--sse", "http://x/y", "--header", "authorization:Bearer abc"},
		},
	}

	ep := Resolve(agent)

	assert.Equal(t, "http://x/y", ep.URL)
	assert.Equal(t, "Bearer abc", ep.Auth)
	assert.Equal(t, RuleHeaderFlag, ep.AuthRule)
	assert.Equal(t, TransportSSE, ep.Transport)
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, ep.Headers())
}

func TestResolve_NoEndpointInCommandLine(t *testing.T) {
	agent := &rag.AgentDescriptor{
		Kind: rag.AgentMCP,
		Name: "Local Tools",
		Config: map[string]any{
			"args": []any{"npx", "-y", "pkg", "--header", "authorization:tok"},
		},
	}

	ep := Resolve(agent)

	assert.False(t, ep.Found())
	assert.Equal(t, "tok", ep.Auth)
}

func TestResolve_AuthPriority(t *testing.T) {
	tests := []struct {
		name     string
		agent    *rag.AgentDescriptor
		wantAuth string
		wantRule Rule
	}{
		{
			name: "direct auth first",
			agent: &rag.AgentDescriptor{Auth: "direct", Config: map[string]any{
				"apiKey": "nested",
				"args":   []any{"--header", "Authorization: flag"},
			}},
			wantAuth: "direct",
			wantRule: RuleDirect,
		},
		{
			name:     "nested api key",
			agent:    &rag.AgentDescriptor{Config: map[string]any{"api_key": "nested"}},
			wantAuth: "nested",
			wantRule: RuleConfigAuth,
		},
		{
			name: "header map is case insensitive",
			agent: &rag.AgentDescriptor{Config: map[string]any{
				"headers": map[string]any{"AUTHORIZATION": "Basic dXNlcg=="},
			}},
			wantAuth: "Basic dXNlcg==",
			wantRule: RuleConfigHeader,
		},
		{
			name: "header flag with mixed case prefix",
			agent: &rag.AgentDescriptor{Config: map[string]any{
				"args": []any{"--header", "AUTHORIZATION: Bearer xyz"},
			}},
			wantAuth: "Bearer xyz",
			wantRule: RuleHeaderFlag,
		},
		{
			name: "header flag with equals form",
			agent: &rag.AgentDescriptor{Config: map[string]any{
				"args": []any{"--header=authorization:abc"},
			}},
			wantAuth: "abc",
			wantRule: RuleHeaderFlag,
		},
		{
			name: "other headers are ignored",
			agent: &rag.AgentDescriptor{Config: map[string]any{
				"args": []any{"--header", "x-api-version:2"},
			}},
			wantAuth: "",
			wantRule: RuleNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := Resolve(tt.agent)
			assert.Equal(t, tt.wantAuth, ep.Auth)
			assert.Equal(t, tt.wantRule, ep.AuthRule)
		})
	}
}

func TestResolve_IsIdempotent(t *testing.T) {
	config := map[string]any{
		"mcpServers": map[string]any{
			"remote": map[string]any{"args": []any{"--sse", "http://x/sse"}},
		},
	}
	agent := &rag.AgentDescriptor{Kind: rag.AgentMCP, Config: config}

	first := Resolve(agent)
	second := Resolve(agent)

	assert.Equal(t, first, second)
	assert.Len(t, config, 1, "resolution must not mutate the agent config")
}

func TestResolve_IllTypedFieldsDoNotHideURL(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantURL   string
		wantAuth  string
		transport Transport
	}{
		{
			name: "header with a list value",
			config: map[string]any{
				"url":     "http://tools/mcp",
				"headers": map[string]any{"Authorization": []any{"Bearer a", "Bearer b"}, "X-Team": "core"},
			},
			wantURL:   "http://tools/mcp",
			transport: TransportHTTP,
		},
		{
			name:      "token given as an object",
			config:    map[string]any{"webhookUrl": "http://hooks/x", "token": map[string]any{"value": "t"}, "apiKey": "k1"},
			wantURL:   "http://hooks/x",
			wantAuth:  "k1",
			transport: TransportHTTP,
		},
		{
			name:      "transport given as an object",
			config:    map[string]any{"url": "http://x/mcp", "transport": map[string]any{"type": "sse"}},
			wantURL:   "http://x/mcp",
			transport: TransportSSE,
		},
		{
			name:      "args given as an object",
			config:    map[string]any{"baseUrl": "http://base/mcp", "args": map[string]any{"0": "--sse"}},
			wantURL:   "http://base/mcp",
			transport: TransportHTTP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := Resolve(&rag.AgentDescriptor{Kind: rag.AgentMCP, Config: tt.config})
			assert.True(t, ep.Found())
			assert.Equal(t, tt.wantURL, ep.URL)
			assert.Equal(t, tt.wantAuth, ep.Auth)
			assert.Equal(t, tt.transport, ep.Transport)
		})
	}
}

func TestResolve_FoldedKeysAreDeterministic(t *testing.T) {
	agent := &rag.AgentDescriptor{Kind: rag.AgentWebhook, Config: map[string]any{
		"webhook_url": "http://a",
		"webhookUrl":  "http://b",
		"headers":     map[string]any{"authorization": "lower", "Authorization": "upper"},
	}}

	for i := 0; i < 100; i++ {
		ep := Resolve(agent)
		assert.Equal(t, "http://b", ep.URL, "camelCase spelling wins")
		assert.Equal(t, "upper", ep.Auth)
	}
}

func TestAuthorizationHeader(t *testing.T) {
	tests := map[string]string{
		"tok":        "Bearer tok",
		"Bearer tok": "Bearer tok",
		"Basic abc":  "Basic abc",
		"  spaced  ": "Bearer spaced",
		"":           "",
	}
	for in, want := range tests {
		if got := AuthorizationHeader(in); got != want {
			t.Errorf("AuthorizationHeader(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLooksLikeURL(t *testing.T) {
	assert.True(t, LooksLikeURL("http://x/y"))
	assert.True(t, LooksLikeURL("wss://socket.example"))
	assert.False(t, LooksLikeURL("-y"))
	assert.False(t, LooksLikeURL("@scope/pkg"))
	assert.False(t, LooksLikeURL("mailto:someone"))
}
