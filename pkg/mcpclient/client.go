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

// Package mcpclient is a single-exchange JSON-RPC client for remote tool
// servers and plain webhooks.
//
// Every exchange is one HTTP POST. Responses may be a JSON document or an
// event stream carrying JSON in "data:" lines; both are accepted regardless
// of the Content-Type the server claims. Nothing is retried.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/ragdispatch/pkg/httpclient"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

const (
	// DefaultTimeout bounds one remote round trip.
	DefaultTimeout = 30 * time.Second

	maxBodyBytes   = 8 << 20
	maxBodyExcerpt = 512

	headerSessionID       = "Mcp-Session-Id"
	headerProtocolVersion = "MCP-Protocol-Version"
	acceptBoth            = "application/json, text/event-stream"
)

var requestID atomic.Int64

func init() {
	requestID.Store(time.Now().UnixMilli())
}

func nextID() int64 {
	return requestID.Add(1)
}

// Request is the JSON-RPC request envelope.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Client performs remote exchanges. It holds no per-request state and is
// safe for concurrent use.
type Client struct {
	http            *httpclient.Client
	timeout         time.Duration
	protocolVersion string
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout    time.Duration
	httpClient *http.Client
	tls        *httpclient.TLSConfig
}

// WithTimeout sets the per-round-trip timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithTLSConfig configures TLS for self-hosted tool servers.
func WithTLSConfig(cfg *httpclient.TLSConfig) Option {
	return func(o *clientOptions) {
		o.tls = cfg
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	o := &clientOptions{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}

	return &Client{
		http: httpclient.New(
			httpclient.WithHTTPClient(o.httpClient),
			httpclient.WithTLSConfig(o.tls),
			httpclient.WithMaxRetries(0),
		),
		timeout:         o.timeout,
		protocolVersion: mcp.LATEST_PROTOCOL_VERSION,
	}
}

// Timeout returns the per-round-trip timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Send issues one JSON-RPC exchange and returns the parsed response envelope.
func (c *Client) Send(ctx context.Context, url, method string, params any, headers map[string]string) (any, error) {
	if params == nil {
		params = map[string]any{}
	}

	body, err := json.Marshal(Request{
		JSONRPC: "2.0",
		ID:      nextID(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	raw, err := c.post(ctx, url, method, body, headers, true)
	if err != nil {
		return nil, err
	}

	v, err := ParseBody(raw)
	if err != nil {
		return nil, &rag.TransportError{URL: url, Body: excerpt(raw), Err: err}
	}
	return v, nil
}

// CallTool invokes tools/call and returns the JSON-RPC result.
func (c *Client) CallTool(ctx context.Context, url, name string, args map[string]any, headers map[string]string) (any, error) {
	if args == nil {
		args = map[string]any{}
	}

	v, err := c.Send(ctx, url, string(mcp.MethodToolsCall), map[string]any{
		"name":      name,
		"arguments": args,
	}, headers)
	if err != nil {
		return nil, err
	}

	result, err := UnwrapResult(v)
	if err != nil {
		var tie *rag.ToolInvocationError
		if errors.As(err, &tie) {
			tie.Tool = name
		}
		return nil, err
	}

	if m, ok := result.(map[string]any); ok {
		if isError, _ := m["isError"].(bool); isError {
			return nil, &rag.ToolInvocationError{Tool: name, Message: contentText(m)}
		}
	}
	return result, nil
}

// PostJSON sends body to a plain webhook. A 2xx reply that is not JSON is
// returned as a trimmed string.
func (c *Client) PostJSON(ctx context.Context, url string, body any, headers map[string]string) (any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	raw, err := c.post(ctx, url, "webhook", data, headers, false)
	if err != nil {
		return nil, err
	}

	if v, err := ParseBody(raw); err == nil {
		return v, nil
	}
	return strings.TrimSpace(string(raw)), nil
}

func (c *Client) post(ctx context.Context, url, method string, body []byte, headers map[string]string, rpc bool) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &rag.TransportError{URL: url, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", acceptBoth)
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	session := sessionFrom(ctx)
	if rpc {
		req.Header.Set(headerProtocolVersion, c.protocolVersion)
		if id := session.ID(); id != "" {
			req.Header.Set(headerSessionID, id)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("Remote request failed",
			"url", url,
			"method", method,
			"error", err.Error())
		return nil, &rag.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &rag.TransportError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	slog.Debug("Remote request completed",
		"url", url,
		"method", method,
		"status_code", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"duration", time.Since(start))

	if rpc {
		session.set(resp.Header.Get(headerSessionID))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &rag.TransportError{URL: url, StatusCode: resp.StatusCode, Body: excerpt(raw)}
	}
	return raw, nil
}

func excerpt(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxBodyExcerpt {
		return s[:maxBodyExcerpt] + "..."
	}
	return s
}
