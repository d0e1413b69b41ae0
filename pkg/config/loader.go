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
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/ragdispatch/pkg/config/provider"
)

// reloadSettle absorbs bursts of change events (editors often write a
// file in several steps) into a single reload.
const reloadSettle = 250 * time.Millisecond

// Loader reads a Config through a provider and keeps the last good one.
type Loader struct {
	src      provider.Provider
	onChange func(*Config)
	settle   time.Duration

	current atomic.Pointer[Config]

	mu     sync.Mutex
	digest [sha256.Size]byte
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange registers fn to receive every config that differs from the
// previous one.
func WithOnChange(fn func(*Config)) LoaderOption {
	return func(l *Loader) { l.onChange = fn }
}

// WithSettle overrides how long Watch waits for change events to stop
// before reloading.
func WithSettle(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d >= 0 {
			l.settle = d
		}
	}
}

func NewLoader(p provider.Provider, opts ...LoaderOption) *Loader {
	l := &Loader{src: p, settle: reloadSettle}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Current returns the last config that loaded cleanly, or nil.
func (l *Loader) Current() *Config {
	return l.current.Load()
}

// Load fetches and parses the document. On success it becomes Current.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	cfg, _, err := l.reload(ctx)
	return cfg, err
}

// reload reports changed=false when the source bytes are identical to the
// previous successful load.
func (l *Loader) reload(ctx context.Context) (*Config, bool, error) {
	data, err := l.src.Load(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s config: %w", l.src.Type(), err)
	}

	sum := sha256.Sum256(data)
	l.mu.Lock()
	defer l.mu.Unlock()

	if prev := l.current.Load(); prev != nil && sum == l.digest {
		return prev, false, nil
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, false, err
	}
	l.digest = sum
	l.current.Store(cfg)
	return cfg, true, nil
}

// Parse turns a YAML (or JSON) document into a validated Config with
// defaults applied. ${VAR} references are expanded before decoding.
func Parse(data []byte) (*Config, error) {
	doc := map[string]any{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("config is neither YAML nor JSON: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	}

	cfg := &Config{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(ExpandEnv(doc)); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Watch blocks until ctx ends, reloading whenever the provider signals a
// change. Broken documents are logged and the previous config stays active.
func (l *Loader) Watch(ctx context.Context) error {
	events, err := l.src.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching %s config: %w", l.src.Type(), err)
	}
	if events == nil {
		slog.Info("Config source does not support watching", "type", l.src.Type())
		<-ctx.Done()
		return ctx.Err()
	}

	slog.Info("Watching config", "type", l.src.Type(), "settle", l.settle)

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case _, ok := <-events:
			if !ok {
				return nil
			}
			fire = time.After(l.settle)

		case <-fire:
			fire = nil
			cfg, changed, err := l.reload(ctx)
			switch {
			case err != nil:
				slog.Error("Config reload rejected, keeping previous", "error", err)
			case !changed:
				slog.Debug("Config unchanged after event")
			default:
				slog.Info("Config reloaded", "agents", len(cfg.Agents))
				if l.onChange != nil {
					l.onChange(cfg)
				}
			}
		}
	}
}

func (l *Loader) Close() error {
	return l.src.Close()
}

// LoadConfig builds the provider described by opts and performs the first load.
func LoadConfig(ctx context.Context, opts provider.ProviderConfig, loaderOpts ...LoaderOption) (*Config, *Loader, error) {
	p, err := provider.New(opts)
	if err != nil {
		return nil, nil, err
	}
	l := NewLoader(p, loaderOpts...)
	cfg, err := l.Load(ctx)
	if err != nil {
		_ = p.Close()
		return nil, nil, err
	}
	return cfg, l, nil
}

// LoadConfigFile is LoadConfig for a local file.
func LoadConfigFile(ctx context.Context, path string, loaderOpts ...LoaderOption) (*Config, *Loader, error) {
	return LoadConfig(ctx, provider.ProviderConfig{Type: provider.TypeFile, Path: path}, loaderOpts...)
}
