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

// Package endpoint extracts a callable URL and an optional credential from
// arbitrarily shaped agent configuration.
//
// Resolution walks two independent, ordered rule chains (one for the URL,
// one for the credential). The first rule yielding a value wins. Finding
// nothing is a normal outcome, reported through Endpoint.Found.
package endpoint

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// Transport is the wire variant a tool server was configured with.
type Transport string

const (
	TransportHTTP           Transport = "http"
	TransportSSE            Transport = "sse"
	TransportStreamableHTTP Transport = "streamable-http"
)

// Rule names the place a resolved value was found.
type Rule string

const (
	RuleNone          Rule = ""
	RuleDirect        Rule = "direct"
	RuleWebhookURL    Rule = "config.webhookUrl"
	RuleURL           Rule = "config.url"
	RuleBaseURL       Rule = "config.baseUrl"
	RuleTransportFlag Rule = "args.transport-flag"
	RuleArgURL        Rule = "args.url"
	RuleConfigAuth    Rule = "config.auth"
	RuleConfigHeader  Rule = "config.headers"
	RuleHeaderFlag    Rule = "args.header"
)

// Endpoint is the canonical (url, auth) pair used by the rest of the core.
type Endpoint struct {
	URL       string
	Auth      string
	URLRule   Rule
	AuthRule  Rule
	Transport Transport
}

// Found reports whether a URL was resolved.
func (e Endpoint) Found() bool {
	return e.URL != ""
}

// Headers returns the request headers implied by the credential.
func (e Endpoint) Headers() map[string]string {
	if e.Auth == "" {
		return nil
	}
	return map[string]string{"Authorization": AuthorizationHeader(e.Auth)}
}

// AuthorizationHeader turns a credential into an Authorization header value.
// Credentials that already carry a scheme are sent unchanged.
func AuthorizationHeader(auth string) string {
	auth = strings.TrimSpace(auth)
	if auth == "" || strings.ContainsRune(auth, ' ') {
		return auth
	}
	return "Bearer " + auth
}

var (
	schemePattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://\S+`)
	transportFlags = map[string]Transport{
		"--streamablehttp": TransportStreamableHTTP,
		"--sse":            TransportSSE,
	}
)

const (
	headerFlag          = "--header"
	authorizationPrefix = "authorization:"
)

type rule struct {
	name Rule
	find func(shapes []Shape) string
}

// urlRules is the URL priority chain.
var urlRules = []rule{
	{RuleDirect, func(s []Shape) string {
		d, _ := find[DirectShape](s)
		return d.URL
	}},
	{RuleWebhookURL, func(s []Shape) string {
		h, _ := find[HTTPShape](s)
		return strings.TrimSpace(h.WebhookURL)
	}},
	{RuleURL, func(s []Shape) string {
		h, _ := find[HTTPShape](s)
		return strings.TrimSpace(h.URL)
	}},
	{RuleBaseURL, func(s []Shape) string {
		h, _ := find[HTTPShape](s)
		return strings.TrimSpace(h.BaseURL)
	}},
	{RuleTransportFlag, func(s []Shape) string {
		c, _ := find[CommandShape](s)
		url, _ := argAfterTransportFlag(c.Args)
		return url
	}},
	{RuleArgURL, func(s []Shape) string {
		c, _ := find[CommandShape](s)
		for _, arg := range c.Args {
			if LooksLikeURL(arg) {
				return arg
			}
		}
		return ""
	}},
}

// authRules is the credential priority chain.
var authRules = []rule{
	{RuleDirect, func(s []Shape) string {
		d, _ := find[DirectShape](s)
		return d.Auth
	}},
	{RuleConfigAuth, func(s []Shape) string {
		h, _ := find[HTTPShape](s)
		for _, v := range []string{h.Authorization, h.APIKey, h.Token, h.AuthToken, h.BearerToken} {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
		return ""
	}},
	{RuleConfigHeader, func(s []Shape) string {
		h, _ := find[HTTPShape](s)
		keys := make([]string, 0, len(h.Headers))
		for k := range h.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if strings.EqualFold(k, "authorization") {
				return strings.TrimSpace(h.Headers[k])
			}
		}
		return ""
	}},
	{RuleHeaderFlag, func(s []Shape) string {
		c, _ := find[CommandShape](s)
		return authFromHeaderFlag(c.Args)
	}},
}

// Resolve extracts the endpoint of agent. It never fails and has no side effects.
func Resolve(agent *rag.AgentDescriptor) Endpoint {
	shapes := Decode(agent)

	var ep Endpoint
	for _, r := range urlRules {
		if v := r.find(shapes); v != "" {
			ep.URL, ep.URLRule = v, r.name
			break
		}
	}
	for _, r := range authRules {
		if v := r.find(shapes); v != "" {
			ep.Auth, ep.AuthRule = v, r.name
			break
		}
	}
	ep.Transport = detectTransport(shapes, ep.URL)
	return ep
}

// LooksLikeURL reports whether s begins with a URI scheme followed by "://".
func LooksLikeURL(s string) bool {
	return schemePattern.MatchString(s)
}

func argAfterTransportFlag(args []string) (string, Transport) {
	for i, arg := range args {
		t, ok := transportFlags[strings.ToLower(arg)]
		if !ok || i+1 >= len(args) {
			continue
		}
		if next := args[i+1]; !strings.HasPrefix(next, "--") {
			return next, t
		}
	}
	return "", ""
}

func authFromHeaderFlag(args []string) string {
	for i, arg := range args {
		var value string
		switch {
		case strings.EqualFold(arg, headerFlag) && i+1 < len(args):
			value = args[i+1]
		case len(arg) > len(headerFlag)+1 && strings.EqualFold(arg[:len(headerFlag)+1], headerFlag+"="):
			value = arg[len(headerFlag)+1:]
		default:
			continue
		}
		value = strings.Trim(value, `"'`)
		if len(value) >= len(authorizationPrefix) &&
			strings.EqualFold(value[:len(authorizationPrefix)], authorizationPrefix) {
			return strings.TrimSpace(value[len(authorizationPrefix):])
		}
	}
	return ""
}

func detectTransport(shapes []Shape, url string) Transport {
	if c, ok := find[CommandShape](shapes); ok {
		if _, t := argAfterTransportFlag(c.Args); t != "" {
			return t
		}
	}
	if h, ok := find[HTTPShape](shapes); ok {
		switch strings.ToLower(strings.ReplaceAll(h.Transport, "_", "-")) {
		case "sse":
			return TransportSSE
		case "streamable-http", "streamablehttp":
			return TransportStreamableHTTP
		}
	}
	if strings.HasSuffix(strings.TrimRight(url, "/"), "/sse") {
		return TransportSSE
	}
	return TransportHTTP
}
