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

package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Workflow is one entry of a search_workflows listing.
type Workflow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Parser extracts workflows from the text of a search_workflows reply.
type Parser interface {
	Name() string
	Parse(text string) []Workflow
}

// DefaultParsers is tried in order; a parser runs only when all earlier
// ones found nothing.
var DefaultParsers = []Parser{JSONArrayParser{}, LabelParser{}, QuotedParser{}}

// Parse runs parsers in order and returns the first non-empty result.
func Parse(text string, parsers ...Parser) []Workflow {
	if len(parsers) == 0 {
		parsers = DefaultParsers
	}
	for _, p := range parsers {
		if found := p.Parse(text); len(found) > 0 {
			return found
		}
	}
	return nil
}

var bracketed = regexp.MustCompile(`(?s)\[.*\]`)

// JSONArrayParser decodes the first bracketed substring as a JSON array.
type JSONArrayParser struct{}

func (JSONArrayParser) Name() string { return "json-array" }

func (JSONArrayParser) Parse(text string) []Workflow {
	match := bracketed.FindString(text)
	if match == "" {
		return nil
	}

	var items []any
	if err := json.Unmarshal([]byte(match), &items); err != nil {
		return nil
	}

	var out []Workflow
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := idString(m["id"])
		if id == "" {
			id = idString(m["workflowId"])
		}
		if id == "" {
			continue
		}
		name, _ := m["name"].(string)
		out = append(out, Workflow{ID: id, Name: strings.TrimSpace(name)})
	}
	return out
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

var (
	labelID = regexp.MustCompile(`(?i)\bID:\s*([A-Za-z0-9_\-]+)`)
	// A name ends at a comma, a parenthesis, the next "ID:" label or the end of the line.
	labelName = regexp.MustCompile(`(?i)\bName:\s*([^,()\n\r]+?)(?:\s+ID:|\s*[,(\n\r]|\s*$)`)
)

// LabelParser extracts "ID: x" / "Name: y" label pairs.
type LabelParser struct{}

func (LabelParser) Name() string { return "labels" }

func (LabelParser) Parse(text string) []Workflow {
	return pair(labelID.FindAllStringSubmatch(text, -1), labelName.FindAllStringSubmatch(text, -1))
}

var (
	quotedID   = regexp.MustCompile(`"id"\s*:\s*"?([^",}\s]+)"?`)
	quotedName = regexp.MustCompile(`"name"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// QuotedParser extracts quoted "id" / "name" pairs from text that is
// JSON-like but not valid JSON.
type QuotedParser struct{}

func (QuotedParser) Name() string { return "quoted" }

func (QuotedParser) Parse(text string) []Workflow {
	return pair(quotedID.FindAllStringSubmatch(text, -1), quotedName.FindAllStringSubmatch(text, -1))
}

// pair zips id and name matches by position. Names are optional.
func pair(ids, names [][]string) []Workflow {
	out := make([]Workflow, 0, len(ids))
	for i, m := range ids {
		w := Workflow{ID: strings.TrimSpace(m[1])}
		if i < len(names) {
			w.Name = strings.TrimSpace(names[i][1])
		}
		if w.ID != "" {
			out = append(out, w)
		}
	}
	return out
}
