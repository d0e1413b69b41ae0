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
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// ErrUnparseableBody is wrapped by TransportError when a 2xx body carries no JSON.
var ErrUnparseableBody = errors.New("response body is neither JSON nor an event stream carrying JSON")

// ParseBody decodes a response body. Event-stream "data:" lines are tried
// first, in order, and the first one holding valid JSON wins. Otherwise the
// whole body is parsed as one JSON document.
func ParseBody(raw []byte) (any, error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), len(raw)+1)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(payload), &v); err == nil {
			return v, nil
		}
	}

	var v any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableBody, err)
	}
	return v, nil
}

// UnwrapResult extracts the result member of a JSON-RPC response. An error
// member becomes a *rag.ToolInvocationError. Values that are not JSON-RPC
// envelopes are returned unchanged.
func UnwrapResult(v any) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}

	if e, ok := m["error"]; ok && e != nil {
		tie := &rag.ToolInvocationError{}
		switch e := e.(type) {
		case map[string]any:
			if code, ok := e["code"].(float64); ok {
				tie.Code = int(code)
			}
			tie.Message, _ = e["message"].(string)
			if data, ok := e["data"]; ok && data != nil {
				tie.Message = strings.TrimSpace(fmt.Sprintf("%s %v", tie.Message, data))
			}
		case string:
			tie.Message = e
		default:
			tie.Message = fmt.Sprint(e)
		}
		if tie.Message == "" {
			tie.Message = "remote server returned an error without a message"
		}
		return nil, tie
	}

	if result, ok := m["result"]; ok {
		return result, nil
	}
	return m, nil
}

// contentText joins the text blocks of a tool result.
func contentText(m map[string]any) string {
	blocks, _ := m["content"].([]any)
	var parts []string
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := block["text"].(string); ok && text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "tool reported an error"
	}
	return strings.Join(parts, "\n")
}
