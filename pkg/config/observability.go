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

package config

import (
	"fmt"
	"time"
)

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Namespace prefixes all metric names.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty" jsonschema:"default=ragdispatch"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Exporter is otlp or stdout.
	Exporter string `yaml:"exporter,omitempty" json:"exporter,omitempty" jsonschema:"enum=otlp,enum=stdout,default=otlp"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"default=localhost:4317"`

	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" jsonschema:"minimum=0,maximum=1,default=1"`

	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty" jsonschema:"default=ragdispatch"`

	// Insecure disables TLS for the exporter connection.
	Insecure *bool `yaml:"insecure,omitempty" json:"insecure,omitempty"`

	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Headers are sent with every export, e.g. collector API keys.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// SetDefaults applies default values.
func (c *ObservabilityConfig) SetDefaults() {
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "ragdispatch"
	}

	t := &c.Tracing
	if t.Exporter == "" {
		t.Exporter = "otlp"
	}
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4317"
	}
	if t.SamplingRate == 0 {
		t.SamplingRate = 1.0
	}
	if t.ServiceName == "" {
		t.ServiceName = "ragdispatch"
	}
	if t.Insecure == nil {
		insecure := true
		t.Insecure = &insecure
	}
	if t.Timeout == 0 {
		t.Timeout = 10 * time.Second
	}
}

// Validate checks the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	t := c.Tracing
	if !t.Enabled {
		return nil
	}
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		return fmt.Errorf("tracing.sampling_rate must be between 0 and 1, got %f", t.SamplingRate)
	}
	switch t.Exporter {
	case "otlp":
		if t.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint is required for the otlp exporter")
		}
	case "stdout":
	default:
		return fmt.Errorf("invalid tracing exporter %q (valid: otlp, stdout)", t.Exporter)
	}
	return nil
}

// IsInsecure reports whether the exporter connection skips TLS.
func (c *TracingConfig) IsInsecure() bool {
	return c.Insecure == nil || *c.Insecure
}
