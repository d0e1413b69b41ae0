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
	"encoding/json"
	"fmt"
	"strings"
)

// EmptyResponse is returned when a reply carries nothing printable.
const EmptyResponse = "(empty response)"

// maxDepth bounds recursion into nested envelopes.
const maxDepth = 8

// Normalize reduces a tool or webhook reply to text. It never returns "".
func Normalize(v any) string {
	if s := normalize(v, 0); s != "" {
		return s
	}
	return EmptyResponse
}

func normalize(v any, depth int) string {
	if depth > maxDepth {
		return stringify(v)
	}

	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return normalizeMap(t, depth)
	case []any:
		return joinBlocks(t, depth)
	default:
		return stringify(v)
	}
}

func normalizeMap(m map[string]any, depth int) string {
	if content, ok := m["content"]; ok && content != nil {
		if blocks, ok := content.([]any); ok {
			if s := joinBlocks(blocks, depth); s != "" {
				return s
			}
		} else if s := scalar(content); s != "" {
			return s
		}
	}

	for _, key := range []string{"response", "message", "text", "output"} {
		if s := field(m, key, depth); s != "" {
			return s
		}
	}

	if result, ok := m["result"].(map[string]any); ok {
		if s := field(result, "content", depth); s != "" {
			return s
		}
	}

	for _, key := range []string{"result", "answer"} {
		if s := field(m, key, depth); s != "" {
			return s
		}
	}

	return stringify(m)
}

func field(m map[string]any, key string, depth int) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return normalize(v, depth+1)
}

// joinBlocks joins each element's text, else its content, else the element itself.
func joinBlocks(blocks []any, depth int) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		var s string
		if block, ok := b.(map[string]any); ok {
			if text, ok := block["text"]; ok && text != nil {
				s = scalar(text)
			}
			if s == "" {
				if c, ok := block["content"]; ok && c != nil {
					s = normalize(c, depth+1)
				}
			}
			if s == "" {
				s = stringify(block)
			}
		} else {
			s = normalize(b, depth+1)
		}
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any, []any:
		return stringify(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	s := string(data)
	if s == "null" || s == "{}" || s == "[]" || s == `""` {
		return ""
	}
	return s
}
