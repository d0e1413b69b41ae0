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

package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{
			name: "content array of text blocks",
			in: map[string]any{"content": []any{
				map[string]any{"type": "text", "text": "first"},
				map[string]any{"type": "text", "text": "second"},
			}},
			want: "first\nsecond",
		},
		{
			name: "content array with content sub-field and odd element",
			in: map[string]any{"content": []any{
				map[string]any{"content": "nested"},
				map[string]any{"type": "image", "data": "xyz"},
				"raw",
			}},
			want: "nested\n{\"data\":\"xyz\",\"type\":\"image\"}\nraw",
		},
		{
			name: "scalar content",
			in:   map[string]any{"content": "just text"},
			want: "just text",
		},
		{name: "response", in: map[string]any{"response": "r"}, want: "r"},
		{name: "message", in: map[string]any{"message": "m"}, want: "m"},
		{name: "text", in: map[string]any{"text": "t"}, want: "t"},
		{name: "output", in: map[string]any{"output": "o"}, want: "o"},
		{
			name: "result content",
			in:   map[string]any{"result": map[string]any{"content": []any{map[string]any{"text": "rc"}}}},
			want: "rc",
		},
		{name: "result scalar", in: map[string]any{"result": "done"}, want: "done"},
		{name: "answer", in: map[string]any{"answer": "a"}, want: "a"},
		{
			name: "order response before answer",
			in:   map[string]any{"answer": "a", "response": "r"},
			want: "r",
		},
		{
			name: "empty text falls through",
			in:   map[string]any{"text": "", "output": "o"},
			want: "o",
		},
		{
			name: "no known key is stringified",
			in:   map[string]any{"status": "ok", "count": float64(3)},
			want: `{"count":3,"status":"ok"}`,
		},
		{name: "plain string", in: "  hello  ", want: "hello"},
		{name: "number", in: float64(42), want: "42"},
		{name: "array of objects", in: []any{map[string]any{"output": "x"}}, want: `{"output":"x"}`},
		{name: "nil", in: nil, want: EmptyResponse},
		{name: "empty string", in: "", want: EmptyResponse},
		{name: "empty object", in: map[string]any{}, want: EmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got)
		})
	}
}

func TestNormalize_DeepNestingTerminates(t *testing.T) {
	var v any = "bottom"
	for i := 0; i < 50; i++ {
		v = map[string]any{"result": v}
	}
	assert.NotEmpty(t, Normalize(v))
}

func sampleInput() Input {
	return Input{
		Query: "what is rag?",
		History: []rag.Message{
			{Role: rag.RoleUser, Content: "hi"},
			{Role: rag.RoleAssistant, Content: "hello"},
		},
		Context: []rag.ContextItem{
			{ID: "1", Content: "first passage"},
			{ID: "2", Content: "  "},
			{ID: "3", Content: "second passage"},
		},
	}
}

func TestJoinContext(t *testing.T) {
	assert.Equal(t, "first passage\n\nsecond passage", JoinContext(sampleInput().Context))
	assert.Equal(t, "", JoinContext(nil))
}

func TestToolArguments(t *testing.T) {
	in := sampleInput()

	t.Run("no schema sends every key", func(t *testing.T) {
		args := ToolArguments(in, nil)
		for _, k := range []string{"query", "message", "input", "question", "prompt", "text", "chatInput"} {
			assert.Equal(t, in.Query, args[k], k)
		}
		assert.Equal(t, "first passage\n\nsecond passage", args["context"])
		assert.Len(t, args["history"], 2)
	})

	t.Run("declared properties narrow the payload", func(t *testing.T) {
		schema := map[string]any{"properties": map[string]any{
			"message": map[string]any{"type": "string"},
			"context": map[string]any{"type": "string"},
		}}
		args := ToolArguments(in, schema)
		assert.Equal(t, map[string]any{
			"message": in.Query,
			"context": "first passage\n\nsecond passage",
		}, args)
	})

	t.Run("unrelated properties keep the full payload", func(t *testing.T) {
		schema := map[string]any{"properties": map[string]any{"sessionId": map[string]any{}}}
		args := ToolArguments(in, schema)
		assert.Equal(t, in.Query, args["query"])
		assert.Equal(t, in.Query, args["prompt"])
	})
}

func TestWebhookBody(t *testing.T) {
	body := WebhookBody(sampleInput())

	assert.Equal(t, "what is rag?", body["query"])
	assert.Equal(t, "what is rag?", body["message"])
	assert.Equal(t, "first passage\n\nsecond passage", body["context"])
	assert.Equal(t, []map[string]string{
		{"role": "user", "content": "hi"},
		{"role": "assistant", "content": "hello"},
	}, body["history"])
}

func TestWorkflowInputs(t *testing.T) {
	inputs := WorkflowInputs(sampleInput())

	for _, k := range []string{"message", "query", "input", "chatInput"} {
		assert.Equal(t, "what is rag?", inputs[k], k)
	}
	assert.Equal(t, "first passage\n\nsecond passage", inputs["context"])
}
