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
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// RouteFunc names the route that served r. It is called after the handler
// returns, when routers have recorded the matched pattern.
type RouteFunc func(r *http.Request) string

var inbound = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

// HTTPMiddleware wraps each request in a server span (continuing any
// W3C trace context sent by the caller) and records request metrics.
// Either tracer or metrics may be nil.
func HTTPMiddleware(tracer trace.Tracer, metrics Metrics, route RouteFunc) func(http.Handler) http.Handler {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if route == nil {
		route = func(r *http.Request) string { return r.URL.Path }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			ctx := inbound.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			span := trace.SpanFromContext(ctx)
			if tracer != nil {
				ctx, span = tracer.Start(ctx, SpanHTTPRequest,
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(attribute.String(AttrHTTPMethod, r.Method)))
				defer span.End()
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(ctx)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			pattern := route(r)

			if tracer != nil {
				span.SetName(r.Method + " " + pattern)
				span.SetAttributes(
					attribute.String(AttrHTTPRoute, pattern),
					attribute.Int(AttrHTTPStatusCode, status))
				if status >= http.StatusInternalServerError {
					span.SetAttributes(attribute.String(AttrErrorType, strconv.Itoa(status)))
					span.SetStatus(codes.Error, http.StatusText(status))
				}
			}

			metrics.RecordHTTPRequest(ctx, r.Method, pattern, status, time.Since(began))
		})
	}
}
