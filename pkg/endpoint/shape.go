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
	"log/slog"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// Shape is one recognised layout of agent configuration.
//
// The loosely typed agent config is decoded once into a list of shapes; the
// resolver rules only ever look at shapes, never at the raw map.
type Shape interface {
	shapeName() string
}

// DirectShape holds the first-class endpoint fields of the descriptor.
type DirectShape struct {
	URL  string
	Auth string
}

// HTTPShape holds nested URL and credential fields.
type HTTPShape struct {
	WebhookURL    string            `mapstructure:"webhookurl"`
	URL           string            `mapstructure:"url"`
	BaseURL       string            `mapstructure:"baseurl"`
	Authorization string            `mapstructure:"authorization"`
	APIKey        string            `mapstructure:"apikey"`
	Token         string            `mapstructure:"token"`
	AuthToken     string            `mapstructure:"authtoken"`
	BearerToken   string            `mapstructure:"bearertoken"`
	Headers       map[string]string `mapstructure:"headers"`
	Transport     string            `mapstructure:"transport"`
}

// CommandShape holds a launcher command line, as used by desktop MCP clients.
type CommandShape struct {
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

func (DirectShape) shapeName() string  { return "direct" }
func (HTTPShape) shapeName() string    { return "http" }
func (CommandShape) shapeName() string { return "command" }

// Decode converts an agent descriptor into the shapes it contains, in rule order.
func Decode(agent *rag.AgentDescriptor) []Shape {
	if agent == nil {
		return nil
	}

	var shapes []Shape
	if agent.Endpoint != "" || agent.Auth != "" {
		shapes = append(shapes, DirectShape{
			URL:  strings.TrimSpace(agent.Endpoint),
			Auth: strings.TrimSpace(agent.Auth),
		})
	}

	raw := normalizeKeys(agent.Config)
	if len(raw) == 0 {
		return shapes
	}
	raw = unwrapServers(raw)

	if h := decodeHTTP(raw); !h.empty() {
		shapes = append(shapes, h)
	}

	c := CommandShape{
		Command: strings.TrimSpace(lenient[string](raw, "command")),
		Args:    splitArgs(lenient[[]string](raw, "args")),
		Env:     stringMap(raw, "env"),
	}
	if c.Command != "" || len(c.Args) > 0 {
		shapes = append(shapes, c)
	}

	return shapes
}

// decodeHTTP reads every field on its own so that one badly typed key
// never hides the others.
func decodeHTTP(raw map[string]any) HTTPShape {
	h := HTTPShape{
		WebhookURL:    lenient[string](raw, "webhookurl"),
		URL:           lenient[string](raw, "url"),
		BaseURL:       lenient[string](raw, "baseurl"),
		Authorization: lenient[string](raw, "authorization"),
		APIKey:        lenient[string](raw, "apikey"),
		Token:         lenient[string](raw, "token"),
		AuthToken:     lenient[string](raw, "authtoken"),
		BearerToken:   lenient[string](raw, "bearertoken"),
		Headers:       stringMap(raw, "headers"),
		Transport:     lenient[string](raw, "transport"),
	}
	// {"transport": {"type": "sse"}}
	if nested, ok := raw["transport"].(map[string]any); ok && h.Transport == "" {
		h.Transport = lenient[string](normalizeKeys(nested), "type")
	}
	return h
}

func (h HTTPShape) empty() bool {
	return h.WebhookURL == "" && h.URL == "" && h.BaseURL == "" &&
		h.Authorization == "" && h.APIKey == "" && h.Token == "" &&
		h.AuthToken == "" && h.BearerToken == "" && len(h.Headers) == 0
}

// lenient weakly decodes raw[key] into T. A missing or ill-typed value
// yields the zero T.
func lenient[T any](raw map[string]any, key string) T {
	var out T
	v, ok := raw[key]
	if !ok || v == nil {
		return out
	}
	var tmp T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &tmp,
		DecodeHook:       mapstructure.StringToSliceHookFunc(" "),
	})
	if err != nil {
		return out
	}
	if err := decoder.Decode(v); err != nil {
		slog.Debug("Ignoring agent config field", "field", key, "error", err)
		return out
	}
	return tmp
}

// stringMap decodes a map of strings entry by entry, dropping entries
// whose value is not a scalar.
func stringMap(raw map[string]any, key string) map[string]string {
	m, ok := raw[key].(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch v.(type) {
		case map[string]any, []any, []string:
			slog.Debug("Ignoring agent config entry", "field", key, "entry", k)
			continue
		}
		if s := lenient[string](m, k); s != "" {
			out[k] = s
		}
	}
	return out
}

// normalizeKeys lowercases top-level keys and drops '_' and '-' so that
// webhookUrl, webhook_url and WEBHOOK-URL decode into the same field.
// When several keys fold together the one first in byte order wins, which
// puts camelCase spellings ahead of snake_case ones.
func normalizeKeys(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fold := strings.NewReplacer("_", "", "-", "")
	out := make(map[string]any, len(in))
	for _, k := range keys {
		key := fold.Replace(strings.ToLower(k))
		if _, exists := out[key]; !exists {
			out[key] = in[k]
		}
	}
	return out
}

// unwrapServers lifts the first entry of an mcpServers map into the top level.
// Fields already present at the top level win.
func unwrapServers(raw map[string]any) map[string]any {
	servers, ok := raw["mcpservers"].(map[string]any)
	if !ok || len(servers) == 0 {
		return raw
	}

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		server, ok := servers[name].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range normalizeKeys(server) {
			if _, exists := raw[k]; !exists {
				raw[k] = v
			}
		}
		break
	}
	return raw
}

func splitArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg != "" {
			out = append(out, arg)
		}
	}
	return out
}

func find[T Shape](shapes []Shape) (T, bool) {
	for _, s := range shapes {
		if v, ok := s.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
