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
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/ragdispatch/pkg/agentstore"
	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/observability"
	"github.com/kadirpekel/ragdispatch/pkg/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Host  string `help:"Override server.host."`
	Port  int    `help:"Override server.port."`
	Watch bool   `help:"Reload the configuration when it changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	live := &liveDispatcher{}
	var (
		store agentstore.Store
		obs   *observability.Manager
	)

	onChange := func(cfg *config.Config) {
		if err := agentstore.Seed(ctx, store, cfg.Agents); err != nil {
			slog.Error("Keeping previous configuration", "error", err)
			return
		}
		next, err := buildDispatcher(cfg, store, obs)
		if err != nil {
			slog.Error("Keeping previous configuration", "error", err)
			return
		}
		if prev := live.swap(next); prev != nil {
			// Let in-flight requests finish with the old resources.
			time.AfterFunc(cfg.Dispatch.Timeout, func() { _ = prev.Close() })
		}
		slog.Info("Dispatcher rebuilt", "agents", len(cfg.Agents))
	}

	cfg, loader, err := loadConfig(ctx, cli.Config, config.WithOnChange(onChange))
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat, &cfg.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	obs, err = observability.NewManager(ctx, cfg.Observability, version())
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	store, err = openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open agent store: %w", err)
	}
	defer store.Close()

	d, err := buildDispatcher(cfg, store, obs)
	if err != nil {
		return err
	}
	live.swap(d)
	defer func() { _ = live.current.Load().Close() }()

	srv := server.New(cfg.Server, live,
		server.WithAgentStore(store),
		server.WithObservability(obs.Metrics(), obs.Tracer(), obs.MetricsHandler()),
		server.WithVersion(version()),
	)

	fmt.Printf("\nragdispatch %s ready\n", version())
	fmt.Printf("   Query:   POST http://%s/v1/rag/query\n", cfg.Server.Address())
	fmt.Printf("   Agents:  http://%s/v1/agents (%d configured)\n", cfg.Server.Address(), len(cfg.Agents))
	fmt.Printf("   Health:  http://%s/health\n", cfg.Server.Address())
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics: http://%s/metrics\n", cfg.Server.Address())
	}
	fmt.Println("\nPress Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if c.Watch && loader != nil {
		g.Go(func() error {
			if err := loader.Watch(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("config watch failed: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}
