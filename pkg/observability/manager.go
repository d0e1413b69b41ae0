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

package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/ragdispatch/pkg/config"
)

// Manager owns the process-wide tracer provider and metrics.
type Manager struct {
	provider trace.TracerProvider
	tracer   trace.Tracer
	metrics  Metrics
	prom     *PrometheusMetrics
}

// NewManager initializes tracing and metrics from cfg. Disabled parts are
// replaced by no-op implementations.
func NewManager(ctx context.Context, cfg config.ObservabilityConfig, version string) (*Manager, error) {
	m := &Manager{metrics: NoopMetrics{}}

	provider, err := NewTracerProvider(ctx, cfg.Tracing, version)
	if err != nil {
		return nil, err
	}
	m.provider = provider
	m.tracer = provider.Tracer(TracerName)
	if cfg.Tracing.Enabled {
		slog.Info("Tracing enabled", "exporter", cfg.Tracing.Exporter, "endpoint", cfg.Tracing.Endpoint, "sampling_rate", cfg.Tracing.SamplingRate)
	}

	if cfg.Metrics.Enabled {
		prom, err := NewPrometheusMetrics(cfg.Metrics)
		if err != nil {
			_ = Shutdown(ctx, provider)
			return nil, err
		}
		m.prom = prom
		m.metrics = prom
		slog.Info("Metrics enabled", "namespace", cfg.Metrics.Namespace)
	}

	return m, nil
}

// NewNoopManager returns a manager that records nothing.
func NewNoopManager() *Manager {
	m, _ := NewManager(context.Background(), config.ObservabilityConfig{}, "")
	return m
}

func (m *Manager) Tracer() trace.Tracer { return m.tracer }

func (m *Manager) Metrics() Metrics { return m.metrics }

// MetricsHandler serves /metrics, or nil when metrics are disabled.
func (m *Manager) MetricsHandler() http.Handler {
	if m.prom == nil {
		return nil
	}
	return m.prom.Handler()
}

// Shutdown flushes exporters.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	if err := Shutdown(ctx, m.provider); err != nil {
		errs = append(errs, err)
	}
	if m.prom != nil {
		if err := m.prom.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
