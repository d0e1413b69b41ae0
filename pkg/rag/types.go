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

// Package rag holds the request/response contract of the dispatch core and
// the error taxonomy shared by every stage of an orchestration call.
package rag

import (
	"fmt"
	"strings"
)

const (
	// DefaultTopK is the number of passages retrieved when a request does not set one.
	DefaultTopK = 5

	// DefaultMinScore is the similarity threshold used when a request does not set one.
	DefaultMinScore = 0.5
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of conversation history.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// AgentKind selects the dispatch path for a request.
type AgentKind string

const (
	AgentNone    AgentKind = "none"
	AgentLocal   AgentKind = "local"
	AgentMCP     AgentKind = "mcp"
	AgentWebhook AgentKind = "webhook"
)

// ParseAgentKind maps the spellings found in stored agent configurations
// onto a known kind.
func ParseAgentKind(s string) (AgentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AgentNone, nil
	case "local", "ai", "llm", "assistant":
		return AgentLocal, nil
	case "mcp", "remote", "tool", "tools", "tool-server", "mcp-server":
		return AgentMCP, nil
	case "webhook", "http", "n8n-webhook":
		return AgentWebhook, nil
	default:
		return "", fmt.Errorf("unknown agent kind %q (valid: none, local, mcp, webhook)", s)
	}
}

// AgentDescriptor describes a configured downstream responder.
//
// Config is the vendor-specific raw configuration. It may carry nested URL
// fields or a command line from which the endpoint must be mined; see
// package endpoint.
type AgentDescriptor struct {
	Kind     AgentKind      `json:"kind" yaml:"kind"`
	Name     string         `json:"name" yaml:"name"`
	Endpoint string         `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Auth     string         `json:"auth,omitempty" yaml:"auth,omitempty"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// IsZero reports whether the descriptor selects no external agent.
func (a *AgentDescriptor) IsZero() bool {
	return a == nil || a.Kind == "" || a.Kind == AgentNone
}

// DisplayName returns the name shown to users, falling back to the kind.
func (a *AgentDescriptor) DisplayName() string {
	if a == nil {
		return ""
	}
	if a.Name != "" {
		return a.Name
	}
	return string(a.Kind) + " agent"
}

// ToolDescriptor is a remotely discovered callable tool. It lives for one call.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// ContextItem is a retrieved passage.
type ContextItem struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

var sourceKeys = []string{"source", "filename", "file_name", "title", "url"}

// Source returns a human readable label for where the passage came from.
func (c ContextItem) Source() string {
	for _, key := range sourceKeys {
		if v, ok := c.Metadata[key]; ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	if c.ID != "" {
		return c.ID
	}
	return "unknown source"
}

// Request is one question to answer.
type Request struct {
	Query      string           `json:"query"`
	Collection string           `json:"collection,omitempty"`
	TopK       int              `json:"topK,omitempty"`
	MinScore   *float64         `json:"minScore,omitempty"`
	History    []Message        `json:"history,omitempty"`
	Agent      *AgentDescriptor `json:"agent,omitempty"`
	AgentID    string           `json:"agentId,omitempty"`
}

// SetDefaults fills TopK and MinScore when unset.
func (r *Request) SetDefaults() {
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	if r.MinScore == nil {
		score := DefaultMinScore
		r.MinScore = &score
	}
}

// Validate checks the request before any processing happens.
func (r *Request) Validate() error {
	if r == nil {
		return &ValidationError{Field: "request", Message: "request is required"}
	}
	if strings.TrimSpace(r.Query) == "" {
		return &ValidationError{Field: "query", Message: "query is required"}
	}
	if r.TopK < 0 {
		return &ValidationError{Field: "topK", Message: "topK must be at least 1"}
	}
	if r.MinScore != nil && (*r.MinScore < 0 || *r.MinScore > 1) {
		return &ValidationError{Field: "minScore", Message: "minScore must be between 0 and 1"}
	}
	return nil
}

// Threshold returns the effective minimum score.
func (r *Request) Threshold() float64 {
	if r.MinScore == nil {
		return DefaultMinScore
	}
	return *r.MinScore
}

// Response is the sole output of an orchestration call.
type Response struct {
	Response  string        `json:"response"`
	Context   []ContextItem `json:"context"`
	AgentUsed string        `json:"agentUsed"`
}
