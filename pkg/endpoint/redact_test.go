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
)

func TestRedact(t *testing.T) {
	config := map[string]any{
		"url":     "https://tools.example.com/mcp",
		"apiKey":  "k-SECRET1",
		"headers": map[string]any{"Authorization": "Bearer SECRET3", "X-Team": "core"},
		"args":    []any{"-y", "mcp-remote", "https://tools.example.com/sse", "--header", "authorization:Bearer SECRET2", "--header=Authorization: SECRET4"},
		"mcpServers": map[string]any{
			"n8n": map[string]any{"auth_token": "SECRET5", "command": "npx"},
		},
	}

	got := Redact(config)

	assert.Equal(t, "https://tools.example.com/mcp", got["url"])
	assert.Equal(t, Masked, got["apiKey"])
	assert.Equal(t, map[string]any{"Authorization": Masked, "X-Team": "core"}, got["headers"])
	assert.Equal(t, []any{"-y", "mcp-remote", "https://tools.example.com/sse", "--header", "authorization:***", "--header=authorization:***"}, got["args"])
	assert.Equal(t, map[string]any{"n8n": map[string]any{"auth_token": Masked, "command": "npx"}}, got["mcpServers"])

	// the input is untouched
	assert.Equal(t, "k-SECRET1", config["apiKey"])
	assert.Equal(t, "authorization:Bearer SECRET2", config["args"].([]any)[4])
	assert.Nil(t, Redact(nil))
}

func TestRedact_StringArgs(t *testing.T) {
	config := map[string]any{"args": []string{"mcp-remote", "--sse", "https://tools.example.com/sse", "--header", "Authorization: Bearer x"}}
	got := Redact(config)
	assert.Equal(t, []any{"mcp-remote", "--sse", "https://tools.example.com/sse", "--header", "authorization:***"}, got["args"])
}
