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

// Package provider fetches raw configuration documents from a local file
// or a key-value store and reports when they change.
package provider

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

// Provider is a config source. Implementations are safe for concurrent use.
type Provider interface {
	Type() Type

	// Load returns the current document.
	Load(ctx context.Context) ([]byte, error)

	// Watch returns a channel that receives a value after the document
	// changes and closes when ctx ends. A nil channel without error means
	// the source cannot be watched.
	Watch(ctx context.Context) (<-chan struct{}, error)

	Close() error
}

// ProviderConfig selects and addresses a source.
type ProviderConfig struct {
	Type Type

	// Path is a file path for TypeFile and a key for the stores.
	Path string

	// Endpoints are store addresses; each store has its own default.
	Endpoints []string

	DialTimeout time.Duration
}

func (c ProviderConfig) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return 10 * time.Second
}

func (c ProviderConfig) endpointsOr(def string) []string {
	if len(c.Endpoints) > 0 {
		return c.Endpoints
	}
	return []string{def}
}

type constructor func(ProviderConfig) (Provider, error)

var constructors = map[Type]constructor{
	TypeFile:      func(c ProviderConfig) (Provider, error) { return NewFileProvider(c.Path) },
	TypeConsul:    func(c ProviderConfig) (Provider, error) { return NewConsulProvider(c) },
	TypeEtcd:      func(c ProviderConfig) (Provider, error) { return NewEtcdProvider(c) },
	TypeZookeeper: func(c ProviderConfig) (Provider, error) { return NewZookeeperProvider(c) },
}

var aliases = map[string]Type{
	"":    TypeFile,
	"zk":  TypeZookeeper,
	"kv":  TypeConsul,
	"etc": TypeEtcd,
}

// ParseType accepts a type name or one of its short aliases.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if t, ok := aliases[s]; ok {
		return t, nil
	}
	if _, ok := constructors[Type(s)]; ok {
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown config source %q (want one of %s)", s, strings.Join(knownTypes(), ", "))
}

func knownTypes() []string {
	out := make([]string, 0, len(constructors))
	for t := range constructors {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}

// ParseURL reads a source location. Plain paths and file:// URLs name a
// local file; store URLs carry the endpoint list in the host part and the
// key in the path, e.g. "etcd://10.0.0.1:2379,10.0.0.2:2379/ragdispatch/config".
func ParseURL(raw string) (ProviderConfig, error) {
	if !strings.Contains(raw, "://") {
		return ProviderConfig{Type: TypeFile, Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ProviderConfig{}, fmt.Errorf("invalid config source %q: %w", raw, err)
	}
	typ, err := ParseType(u.Scheme)
	if err != nil {
		return ProviderConfig{}, err
	}
	if typ == TypeFile {
		return ProviderConfig{Type: TypeFile, Path: u.Host + u.Path}, nil
	}

	cfg := ProviderConfig{Type: typ, Path: u.Path}
	if typ == TypeConsul {
		cfg.Path = strings.TrimPrefix(u.Path, "/")
	}
	for _, ep := range strings.Split(u.Host, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			cfg.Endpoints = append(cfg.Endpoints, ep)
		}
	}
	if d := u.Query().Get("timeout"); d != "" {
		if cfg.DialTimeout, err = time.ParseDuration(d); err != nil {
			return ProviderConfig{}, fmt.Errorf("invalid timeout in config source: %w", err)
		}
	}
	return cfg, nil
}

// New builds the provider for opts.
func New(opts ProviderConfig) (Provider, error) {
	if strings.Trim(opts.Path, "/") == "" {
		return nil, fmt.Errorf("config source needs a path or key")
	}
	typ, err := ParseType(string(opts.Type))
	if err != nil {
		return nil, err
	}
	opts.Type = typ
	return constructors[typ](opts)
}

// notify coalesces: a value already waiting in ch covers this change too.
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
