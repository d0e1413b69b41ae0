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

// Package observability provides metrics and tracing for the dispatcher.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kadirpekel/ragdispatch/pkg/config"
)

// Metrics records dispatcher measurements.
type Metrics interface {
	// RecordDispatch records one answered request. path is local, mcp,
	// workflow or webhook; outcome is success, fallback or unresolved.
	RecordDispatch(ctx context.Context, path, outcome string, duration time.Duration)
	RecordRetrieval(ctx context.Context, items int, err error)
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// PrometheusMetrics records through an OTel meter backed by a Prometheus
// registry.
type PrometheusMetrics struct {
	registry *promclient.Registry
	provider *sdkmetric.MeterProvider

	dispatchDuration metric.Float64Histogram
	dispatchTotal    metric.Int64Counter
	retrievalTotal   metric.Int64Counter
	retrievalErrors  metric.Int64Counter
	retrievalItems   metric.Int64Histogram
	httpDuration     metric.Float64Histogram
	httpRequests     metric.Int64Counter
}

// NewPrometheusMetrics creates the instruments on a private registry.
func NewPrometheusMetrics(cfg config.MetricsConfig) (*PrometheusMetrics, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
		prometheus.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(TracerName)

	m := &PrometheusMetrics{registry: registry, provider: provider}

	if m.dispatchDuration, err = meter.Float64Histogram("dispatch_duration_seconds",
		metric.WithDescription("Time to answer a request"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create dispatch duration histogram: %w", err)
	}
	if m.dispatchTotal, err = meter.Int64Counter("dispatch_requests",
		metric.WithDescription("Answered requests by path and outcome")); err != nil {
		return nil, fmt.Errorf("failed to create dispatch counter: %w", err)
	}
	if m.retrievalTotal, err = meter.Int64Counter("retrieval_requests",
		metric.WithDescription("Context retrievals")); err != nil {
		return nil, fmt.Errorf("failed to create retrieval counter: %w", err)
	}
	if m.retrievalErrors, err = meter.Int64Counter("retrieval_errors",
		metric.WithDescription("Context retrievals that failed and degraded to no context")); err != nil {
		return nil, fmt.Errorf("failed to create retrieval errors counter: %w", err)
	}
	if m.retrievalItems, err = meter.Int64Histogram("retrieval_items",
		metric.WithDescription("Passages returned per retrieval")); err != nil {
		return nil, fmt.Errorf("failed to create retrieval items histogram: %w", err)
	}
	if m.httpDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}
	if m.httpRequests, err = meter.Int64Counter("http_requests",
		metric.WithDescription("HTTP requests by route and status")); err != nil {
		return nil, fmt.Errorf("failed to create http counter: %w", err)
	}

	return m, nil
}

func (m *PrometheusMetrics) RecordDispatch(ctx context.Context, path, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("path", path), attribute.String("outcome", outcome))
	m.dispatchDuration.Record(ctx, duration.Seconds(), attrs)
	m.dispatchTotal.Add(ctx, 1, attrs)
}

func (m *PrometheusMetrics) RecordRetrieval(ctx context.Context, items int, err error) {
	m.retrievalTotal.Add(ctx, 1)
	if err != nil {
		m.retrievalErrors.Add(ctx, 1)
		return
	}
	m.retrievalItems.Record(ctx, int64(items))
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
	m.httpRequests.Add(ctx, 1, attrs)
}

// Handler serves the registry in the Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes the meter provider.
func (m *PrometheusMetrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordDispatch(context.Context, string, string, time.Duration)         {}
func (NoopMetrics) RecordRetrieval(context.Context, int, error)                           {}
func (NoopMetrics) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {}

var (
	_ Metrics = (*PrometheusMetrics)(nil)
	_ Metrics = NoopMetrics{}
)
