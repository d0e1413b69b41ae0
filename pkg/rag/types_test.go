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

package rag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAgentKind(t *testing.T) {
	tests := []struct {
		in      string
		want    AgentKind
		wantErr bool
	}{
		{"", AgentNone, false},
		{"none", AgentNone, false},
		{"Local", AgentLocal, false},
		{"mcp", AgentMCP, false},
		{"tool-server", AgentMCP, false},
		{" webhook ", AgentWebhook, false},
		{"carrier-pigeon", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAgentKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequest_Validate(t *testing.T) {
	bad := 1.5
	tests := []struct {
		name  string
		req   *Request
		field string
	}{
		{"nil request", nil, "request"},
		{"missing query", &Request{}, "query"},
		{"blank query", &Request{Query: "   "}, "query"},
		{"negative topK", &Request{Query: "q", TopK: -1}, "topK"},
		{"minScore out of range", &Request{Query: "q", MinScore: &bad}, "minScore"},
		{"valid", &Request{Query: "q"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestRequest_SetDefaults(t *testing.T) {
	req := &Request{Query: "q"}
	req.SetDefaults()

	assert.Equal(t, DefaultTopK, req.TopK)
	require.NotNil(t, req.MinScore)
	assert.Equal(t, DefaultMinScore, req.Threshold())

	zero := 0.0
	req = &Request{Query: "q", TopK: 2, MinScore: &zero}
	req.SetDefaults()
	assert.Equal(t, 2, req.TopK)
	assert.Equal(t, 0.0, req.Threshold())
}

func TestContextItem_Source(t *testing.T) {
	tests := []struct {
		item ContextItem
		want string
	}{
		{ContextItem{ID: "a", Metadata: map[string]any{"source": "guide.pdf"}}, "guide.pdf"},
		{ContextItem{ID: "a", Metadata: map[string]any{"filename": "notes.md"}}, "notes.md"},
		{ContextItem{ID: "doc-7"}, "doc-7"},
		{ContextItem{}, "unknown source"},
	}

	for _, tt := range tests {
		if got := tt.item.Source(); got != tt.want {
			t.Errorf("Source() = %v, want %v", got, tt.want)
		}
	}
}

func TestAgentDescriptor_IsZero(t *testing.T) {
	var nilAgent *AgentDescriptor
	assert.True(t, nilAgent.IsZero())
	assert.True(t, (&AgentDescriptor{}).IsZero())
	assert.True(t, (&AgentDescriptor{Kind: AgentNone, Name: "x"}).IsZero())
	assert.False(t, (&AgentDescriptor{Kind: AgentWebhook}).IsZero())
	assert.Equal(t, "webhook agent", (&AgentDescriptor{Kind: AgentWebhook}).DisplayName())
}

func TestErrors_Unwrap(t *testing.T) {
	retrieval := &RetrievalError{Collection: "docs", Err: ErrCollectionNotFound}
	assert.True(t, errors.Is(retrieval, ErrCollectionNotFound))
	assert.Contains(t, retrieval.Error(), `"docs"`)

	cause := errors.New("connection refused")
	transport := &TransportError{URL: "http://x", Err: cause}
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", transport), cause))
	assert.Equal(t, "HTTP 502 from http://x: bad gateway",
		(&TransportError{URL: "http://x", StatusCode: 502, Body: "bad gateway"}).Error())

	tool := &ToolInvocationError{Tool: "chat", Code: -32602, Message: "invalid params"}
	assert.Equal(t, `tool "chat" failed (code -32602): invalid params`, tool.Error())
}
