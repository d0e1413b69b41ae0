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

import "strings"

// Masked replaces credential values in redacted config.
const Masked = "***"

var secretKeys = map[string]bool{
	"authorization": true,
	"apikey":        true,
	"token":         true,
	"authtoken":     true,
	"bearertoken":   true,
	"password":      true,
	"secret":        true,
	"clientsecret":  true,
}

// Redact returns a deep copy of config with credential values masked.
// Masked are credential fields at any depth, the Authorization entry of
// header maps and the value of a "--header authorization:" argument.
func Redact(config map[string]any) map[string]any {
	if config == nil {
		return nil
	}
	return redactMap(config)
}

func redactMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if isSecretKey(k) && v != nil {
			out[k] = Masked
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t)
	case []any:
		return redactArgs(t)
	case []string:
		args := make([]any, len(t))
		for i, s := range t {
			args[i] = s
		}
		return redactArgs(args)
	default:
		return v
	}
}

func redactArgs(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		s, ok := v.(string)
		if !ok {
			out[i] = redactValue(v)
			continue
		}
		switch {
		case i > 0 && isHeaderFlag(in[i-1]) && hasAuthorizationPrefix(strings.Trim(s, `"'`)):
			out[i] = authorizationPrefix + Masked
		case len(s) > len(headerFlag)+1 && strings.EqualFold(s[:len(headerFlag)+1], headerFlag+"=") &&
			hasAuthorizationPrefix(strings.Trim(s[len(headerFlag)+1:], `"'`)):
			out[i] = headerFlag + "=" + authorizationPrefix + Masked
		default:
			out[i] = s
		}
	}
	return out
}

func isSecretKey(k string) bool {
	k = strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(k))
	return secretKeys[k]
}

func isHeaderFlag(v any) bool {
	s, ok := v.(string)
	return ok && strings.EqualFold(s, headerFlag)
}

func hasAuthorizationPrefix(s string) bool {
	return len(s) >= len(authorizationPrefix) && strings.EqualFold(s[:len(authorizationPrefix)], authorizationPrefix)
}
