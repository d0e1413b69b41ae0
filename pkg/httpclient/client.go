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

// Package httpclient is the outbound HTTP layer shared by the model
// backends and the agent transport.
//
// Model and embedding backends keep the retrying defaults. The agent
// transport uses WithMaxRetries(0): each remote step is sent once and a
// non-2xx reply comes back as a response for the caller to classify.
package httpclient

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryStrategy decides how a non-2xx status is retried.
type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	// ConservativeRetry allows at most two quick retries (server faults).
	ConservativeRetry
	// SmartRetry honours rate-limit hints and otherwise backs off exponentially.
	SmartRetry
)

var strategyNames = [...]string{NoRetry: "none", ConservativeRetry: "conservative", SmartRetry: "smart"}

func (s RetryStrategy) String() string {
	if s >= 0 && int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return "none"
}

// conservativeLimit caps ConservativeRetry regardless of the retry budget.
const conservativeLimit = 2

// RateLimitInfo is what a provider's response headers say about throttling.
type RateLimitInfo struct {
	RetryAfter        time.Duration
	ResetTime         int64
	RequestsRemaining int
	TokensRemaining   int
}

// wait returns the delay the server asked for, or zero.
func (i RateLimitInfo) wait() time.Duration {
	if i.RetryAfter > 0 {
		return i.RetryAfter
	}
	if i.ResetTime > 0 {
		if d := time.Until(time.Unix(i.ResetTime, 0)); d > 0 {
			return d
		}
	}
	return 0
}

type RateLimitHeaderParser func(http.Header) RateLimitInfo

type RetryStrategyFunc func(status int) RetryStrategy

type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	headerParser RateLimitHeaderParser
	strategyFunc RetryStrategyFunc
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithMaxRetries sets the retry budget. Zero disables retries and hands
// every non-2xx response back to the caller.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseDelay sets the first backoff interval.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithMaxDelay caps a single computed backoff interval. Server-provided
// Retry-After values are not capped.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

func WithHeaderParser(parser RateLimitHeaderParser) Option {
	return func(c *Client) { c.headerParser = parser }
}

func WithRetryStrategy(fn RetryStrategyFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.strategyFunc = fn
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		client:       &http.Client{Timeout: 60 * time.Second},
		maxRetries:   5,
		baseDelay:    2 * time.Second,
		maxDelay:     time.Minute,
		strategyFunc: DefaultRetryStrategy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) MaxRetries() int { return c.maxRetries }

// DefaultRetryStrategy retries throttling smartly and transient server
// faults conservatively. Everything else is final.
func DefaultRetryStrategy(status int) RetryStrategy {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusGatewayTimeout:
		return ConservativeRetry
	}
	return NoRetry
}

func (c *Client) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxInterval = max(c.maxDelay, c.baseDelay)
	b.Reset()
	return b
}

// Do sends req and retries retryable statuses within the budget.
//
// Transport errors are returned immediately. A non-2xx status that is not
// retried comes back as a response with a nil error so the caller can read
// the body. When the budget runs out the result is a *RetryableError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	sched := c.schedule()

	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		strategy := c.strategyFunc(resp.StatusCode)
		if strategy == NoRetry || c.maxRetries == 0 {
			return resp, nil
		}

		delay := c.nextDelay(strategy, attempt, resp.Header, sched)
		drain(resp)

		if attempt >= c.maxRetries || delay == backoff.Stop {
			return nil, &RetryableError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("gave up after %d attempts", attempt+1),
				RetryAfter: max(delay, 0),
				Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
			}
		}

		slog.Warn("Retrying HTTP request",
			"url", req.URL.Redacted(),
			"status_code", resp.StatusCode,
			"strategy", strategy.String(),
			"delay", delay,
			"attempt", attempt+1,
			"max_retries", c.maxRetries)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) nextDelay(strategy RetryStrategy, attempt int, h http.Header, sched *backoff.ExponentialBackOff) time.Duration {
	computed := sched.NextBackOff()
	switch strategy {
	case ConservativeRetry:
		if attempt >= conservativeLimit {
			return backoff.Stop
		}
		return computed
	case SmartRetry:
		if c.headerParser != nil {
			if hint := c.headerParser(h).wait(); hint > 0 {
				return hint
			}
		}
		return computed
	}
	return backoff.Stop
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
