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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/kadirpekel/ragdispatch/pkg/agentstore"
	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/config/provider"
	"github.com/kadirpekel/ragdispatch/pkg/embedder"
	"github.com/kadirpekel/ragdispatch/pkg/llm"
	"github.com/kadirpekel/ragdispatch/pkg/mcpclient"
	"github.com/kadirpekel/ragdispatch/pkg/observability"
	"github.com/kadirpekel/ragdispatch/pkg/orchestrator"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
	"github.com/kadirpekel/ragdispatch/pkg/responder"
	"github.com/kadirpekel/ragdispatch/pkg/retrieval"
	"github.com/kadirpekel/ragdispatch/pkg/vector"
)

// loadConfig reads the config from a file path or a store URL
// (consul://, etcd://, zk://), or returns defaults when source is empty.
// For files, .env files next to the config are loaded first.
func loadConfig(ctx context.Context, source string, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	if source == "" {
		cfg := &config.Config{}
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		slog.Info("No config file given, using defaults")
		return cfg, nil, nil
	}

	src, err := provider.ParseURL(source)
	if err != nil {
		return nil, nil, err
	}
	if src.Type == provider.TypeFile {
		if err := config.LoadEnvFiles(filepath.Dir(src.Path)); err != nil {
			slog.Warn("Failed to load .env files", "error", err)
		}
	}
	cfg, loader, err := config.LoadConfig(ctx, src, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "source", src.Type, "path", src.Path)
	return cfg, loader, nil
}

// openStore opens the agent store and seeds it with the configured agents.
func openStore(ctx context.Context, cfg *config.Config) (agentstore.Store, error) {
	if cfg.Database == nil {
		return agentstore.NewMemoryStore(cfg.Agents)
	}

	store, err := agentstore.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := agentstore.Seed(ctx, store, cfg.Agents); err != nil {
		_ = store.Close()
		return nil, err
	}
	slog.Info("Agent store opened", "dialect", cfg.Database.Dialect(), "seeded", len(cfg.Agents))
	return store, nil
}

// dispatcher is an orchestrator together with the resources it owns.
type dispatcher struct {
	*orchestrator.Orchestrator
	closers []func() error
}

func (d *dispatcher) Close() error {
	var errs []error
	for _, c := range d.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildDispatcher wires retrieval, the local responder and the transport
// from cfg.
func buildDispatcher(cfg *config.Config, store agentstore.Store, obs *observability.Manager) (*dispatcher, error) {
	d := &dispatcher{}

	searcher, err := buildSearcher(cfg, d)
	if err != nil {
		_ = d.Close()
		return nil, err
	}

	respOpts := []responder.Option{
		responder.WithHistoryTurns(cfg.Dispatch.HistoryTurns),
		responder.WithHistoryTokens(cfg.Dispatch.HistoryTokens),
		responder.WithContextTokens(cfg.Dispatch.ContextTokens),
	}
	if cfg.LLM != nil {
		completer, err := llm.New(cfg.LLM)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("failed to create llm: %w", err)
		}
		respOpts = append(respOpts, responder.WithCompleter(completer))
	}

	opts := []orchestrator.Option{
		orchestrator.WithLocal(responder.New(respOpts...)),
		orchestrator.WithRemote(mcpclient.New(mcpclient.WithTimeout(cfg.Dispatch.Timeout))),
		orchestrator.WithRetrieval(cfg.Retrieval),
		orchestrator.WithDispatch(cfg.Dispatch),
		orchestrator.WithAgentStore(store),
		orchestrator.WithSearcher(searcher),
	}
	if obs != nil {
		opts = append(opts, orchestrator.WithMetrics(obs.Metrics()), orchestrator.WithTracer(obs.Tracer()))
	}

	d.Orchestrator = orchestrator.New(opts...)
	return d, nil
}

func buildSearcher(cfg *config.Config, d *dispatcher) (retrieval.Searcher, error) {
	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	d.closers = append(d.closers, emb.Close)

	provider, err := vector.NewProvider(cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector provider: %w", err)
	}
	d.closers = append(d.closers, provider.Close)

	searcher, err := retrieval.NewVectorSearcher(emb, provider,
		retrieval.WithDefaultCollection(cfg.Retrieval.DefaultCollection),
		retrieval.WithMaxTopK(cfg.Retrieval.MaxTopK),
	)
	if err != nil {
		return nil, err
	}
	return searcher, nil
}

// liveDispatcher lets the server keep answering while the config reloads.
type liveDispatcher struct {
	current atomic.Pointer[dispatcher]
}

func (l *liveDispatcher) Answer(ctx context.Context, req *rag.Request) (*rag.Response, error) {
	return l.current.Load().Answer(ctx, req)
}

// swap installs d and returns the previous dispatcher.
func (l *liveDispatcher) swap(d *dispatcher) *dispatcher {
	return l.current.Swap(d)
}
