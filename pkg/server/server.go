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

// Package server exposes the dispatcher over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/ragdispatch/pkg/agentstore"
	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/observability"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

const maxRequestBytes = 1 << 20

// Answerer answers one question.
type Answerer interface {
	Answer(ctx context.Context, req *rag.Request) (*rag.Response, error)
}

// Server is the HTTP front end.
type Server struct {
	cfg            config.ServerConfig
	answerer       Answerer
	agents         agentstore.Store
	metrics        observability.Metrics
	tracer         trace.Tracer
	metricsHandler http.Handler
	version        string

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithAgentStore enables the /v1/agents routes.
func WithAgentStore(store agentstore.Store) Option {
	return func(s *Server) {
		s.agents = store
	}
}

// WithObservability records request metrics and spans, and serves h at /metrics.
func WithObservability(m observability.Metrics, t trace.Tracer, h http.Handler) Option {
	return func(s *Server) {
		s.metrics = m
		s.tracer = t
		s.metricsHandler = h
	}
}

func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a Server.
func New(cfg config.ServerConfig, answerer Answerer, opts ...Option) *Server {
	s := &Server{cfg: cfg, answerer: answerer}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMiddleware(s.tracer, s.metrics, routePattern))

	r.Get("/health", s.handleHealth)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/rag/query", s.handleQuery)

		if s.agents != nil {
			r.Get("/agents", s.handleListAgents)
			r.Route("/agents/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAgent)
				r.Put("/", s.handlePutAgent)
				r.Delete("/", s.handleDeleteAgent)
			})
		}
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	slog.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	return <-errCh
}

// routePattern reports the matched chi pattern, or the raw path when no
// route matched.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"route", routePattern(r),
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
