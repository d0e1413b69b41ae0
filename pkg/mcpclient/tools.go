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

package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// ListTools asks the server at url to enumerate its tools. Servers that do
// not implement discovery, or fail in any way, yield an empty slice.
func (c *Client) ListTools(ctx context.Context, url string, headers map[string]string) []rag.ToolDescriptor {
	v, err := c.Send(ctx, url, string(mcp.MethodToolsList), map[string]any{}, headers)
	if err == nil {
		v, err = UnwrapResult(v)
	}
	if err != nil {
		slog.Warn("Tool discovery failed, continuing without tools", "url", url, "error", err)
		return nil
	}

	tools, err := decodeTools(v)
	if err != nil {
		slog.Warn("Tool discovery returned an unexpected shape", "url", url, "error", err)
		return nil
	}

	slog.Debug("Discovered tools", "url", url, "count", len(tools))
	return tools
}

// decodeTools converts a tools/list result entry by entry. An entry that does
// not fit the MCP tool schema keeps its name, description and a map-shaped
// inputSchema; entries without a name are skipped.
func decodeTools(result any) ([]rag.ToolDescriptor, error) {
	var entries []any
	switch v := result.(type) {
	case []any:
		// Some servers answer with the bare array.
		entries = v
	case map[string]any:
		list, ok := v["tools"].([]any)
		if !ok && v["tools"] != nil {
			return nil, fmt.Errorf("tools/list result has tools of type %T", v["tools"])
		}
		entries = list
	default:
		return nil, fmt.Errorf("tools/list result has type %T", result)
	}

	tools := make([]rag.ToolDescriptor, 0, len(entries))
	for i, entry := range entries {
		tool, ok := decodeTool(entry)
		if !ok {
			slog.Debug("Skipping malformed tool", "index", i)
			continue
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

func decodeTool(entry any) (rag.ToolDescriptor, bool) {
	fields, ok := entry.(map[string]any)
	if !ok {
		return rag.ToolDescriptor{}, false
	}

	if data, err := json.Marshal(fields); err == nil {
		var t mcp.Tool
		if err := json.Unmarshal(data, &t); err == nil && t.Name != "" {
			return rag.ToolDescriptor{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: convertSchema(t.InputSchema),
			}, true
		}
	}

	name, _ := fields["name"].(string)
	if name == "" {
		return rag.ToolDescriptor{}, false
	}
	description, _ := fields["description"].(string)
	schema, _ := fields["inputSchema"].(map[string]any)
	return rag.ToolDescriptor{Name: name, Description: description, InputSchema: schema}, true
}

func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}
