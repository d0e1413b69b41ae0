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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

func testConfig(provider config.LLMProvider, baseURL string) *config.LLMConfig {
	temp := 0.2
	return &config.LLMConfig{
		Provider:    provider,
		Model:       "test-model",
		BaseURL:     baseURL,
		APIKey:      "sk-test",
		Temperature: &temp,
		MaxTokens:   64,
		Timeout:     5 * time.Second,
		RetryDelay:  time.Millisecond,
	}
}

var history = []rag.Message{
	{Role: rag.RoleUser, Content: "hello"},
	{Role: rag.RoleAssistant, Content: "hi there"},
	{Role: rag.RoleUser, Content: "  "},
	{Role: rag.RoleUser, Content: "what is RAG?"},
}

func TestOllamaCompleter_Complete(t *testing.T) {
	var got ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "test-model",
			"message": map[string]any{"role": "assistant", "content": "Retrieval augmented generation."},
			"done":    true,
		})
	}))
	defer server.Close()

	c := NewOllama(testConfig(config.LLMProviderOllama, server.URL+"/"))
	text, err := c.Complete(context.Background(), "use the passages", history)

	require.NoError(t, err)
	assert.Equal(t, "Retrieval augmented generation.", text)
	assert.Equal(t, "test-model", c.Model())
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 4, "blank turns are dropped")
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "what is RAG?", got.Messages[3].Content)
	assert.Equal(t, 64, got.Options.NumPredict)
}

func TestOllamaCompleter_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model not found"})
	}))
	defer server.Close()

	_, err := NewOllama(testConfig(config.LLMProviderOllama, server.URL)).Complete(context.Background(), "", history)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOpenAICompleter_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.NotNil(t, req.Temperature)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{
				"message":       map[string]any{"role": "assistant", "content": "answer"},
				"finish_reason": "stop",
			}},
		})
	}))
	defer server.Close()

	text, err := NewOpenAI(testConfig(config.LLMProviderOpenAI, server.URL+"/v1")).Complete(context.Background(), "sys", history)
	require.NoError(t, err)
	assert.Equal(t, "answer", text)
}

func TestOpenAICompleter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "client error", status: http.StatusBadRequest, body: `{"error":{"message":"bad"}}`, wantErr: "status 400"},
		{name: "api error", status: http.StatusOK, body: `{"error":{"message":"quota","type":"insufficient_quota"}}`, wantErr: "quota"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantErr: "empty choices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewOpenAI(testConfig(config.LLMProviderOpenAI, server.URL)).Complete(context.Background(), "", history)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(testConfig(config.LLMProviderOllama, ""))
	require.NoError(t, err)
	assert.IsType(t, &OllamaCompleter{}, c)

	c, err = New(testConfig(config.LLMProviderOpenAI, ""))
	require.NoError(t, err)
	assert.IsType(t, &OpenAICompleter{}, c)

	cfg := testConfig(config.LLMProviderGemini, "")
	cfg.APIKey = ""
	_, err = New(cfg)
	assert.Error(t, err)

	_, err = New(testConfig("mystery", ""))
	assert.Error(t, err)
}
