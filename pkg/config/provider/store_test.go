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

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConsulKV serves a single key over the Consul KV HTTP API. Requests
// carrying ?index= block until the modify index moves past it or a short
// wait elapses.
type fakeConsulKV struct {
	mu    sync.Mutex
	key   string
	value []byte
	index uint64
}

func (f *fakeConsulKV) put(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = []byte(value)
	f.index++
}

func (f *fakeConsulKV) snapshot() ([]byte, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.index
}

func (f *fakeConsulKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.TrimPrefix(r.URL.Path, "/v1/kv/") != f.key {
		w.Header().Set("X-Consul-Index", "1")
		w.Header().Set("X-Consul-LastContact", "0")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if waitFor, err := strconv.ParseUint(r.URL.Query().Get("index"), 10, 64); err == nil {
		deadline := time.Now().Add(200 * time.Millisecond)
		for time.Now().Before(deadline) && r.Context().Err() == nil {
			if _, idx := f.snapshot(); idx > waitFor {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	value, index := f.snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Consul-Index", strconv.FormatUint(index, 10))
	w.Header().Set("X-Consul-LastContact", "0")
	w.Header().Set("X-Consul-KnownLeader", "true")
	_ = json.NewEncoder(w).Encode([]*api.KVPair{{Key: f.key, Value: value, ModifyIndex: index}})
}

func newConsulTestProvider(t *testing.T, key string) (*ConsulProvider, *fakeConsulKV) {
	t.Helper()
	t.Setenv("CONSUL_HTTP_SSL", "")
	t.Setenv("CONSUL_HTTP_TOKEN", "")

	kv := &fakeConsulKV{key: key}
	kv.put("version: 1\n")
	srv := httptest.NewServer(kv)
	t.Cleanup(srv.Close)

	p, err := NewConsulProvider(ProviderConfig{
		Type:        TypeConsul,
		Path:        "/" + key,
		Endpoints:   []string{strings.TrimPrefix(srv.URL, "http://")},
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	return p, kv
}

func TestConsulProvider_Load(t *testing.T) {
	p, kv := newConsulTestProvider(t, "ragdispatch/config")
	assert.Equal(t, TypeConsul, p.Type())

	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))

	kv.put("version: 2\n")
	data, err = p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "version: 2\n", string(data))
}

func TestConsulProvider_LoadMissingKey(t *testing.T) {
	p, _ := newConsulTestProvider(t, "ragdispatch/config")
	p.key = "ragdispatch/other"

	_, err := p.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestConsulProvider_WatchSignalsOnIndexAdvance(t *testing.T) {
	p, kv := newConsulTestProvider(t, "ragdispatch/config")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := p.Watch(ctx)
	require.NoError(t, err)

	// no change, no signal
	select {
	case <-ch:
		t.Fatal("unexpected change signal")
	case <-time.After(300 * time.Millisecond):
	}

	kv.put("version: 2\n")
	select {
	case _, ok := <-ch:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal after index advanced")
	}
}

func TestConsulProvider_WatchClosesOnCancel(t *testing.T) {
	p, _ := newConsulTestProvider(t, "ragdispatch/config")

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Watch(ctx)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

// Live store tests run only when an address is supplied.

func TestEtcdProvider_Live(t *testing.T) {
	addr := os.Getenv("RAGDISPATCH_TEST_ETCD")
	if addr == "" {
		t.Skip("RAGDISPATCH_TEST_ETCD not set")
	}

	p, err := NewEtcdProvider(ProviderConfig{Type: TypeEtcd, Path: "/ragdispatch/test/config", Endpoints: []string{addr}, DialTimeout: 2 * time.Second})
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = p.client.Put(ctx, p.key, "version: 1\n")
	require.NoError(t, err)
	data, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))

	watchCtx, stop := context.WithCancel(ctx)
	ch, err := p.Watch(watchCtx)
	require.NoError(t, err)

	_, err = p.client.Put(ctx, p.key, "version: 2\n")
	require.NoError(t, err)
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal")
	}

	stop()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestZookeeperProvider_Live(t *testing.T) {
	addr := os.Getenv("RAGDISPATCH_TEST_ZOOKEEPER")
	if addr == "" {
		t.Skip("RAGDISPATCH_TEST_ZOOKEEPER not set")
	}

	p, err := NewZookeeperProvider(ProviderConfig{Type: TypeZookeeper, Path: "/ragdispatch-test", Endpoints: []string{addr}, DialTimeout: 2 * time.Second})
	require.NoError(t, err)
	defer p.Close()

	if _, err := p.conn.Create(p.path, []byte("version: 1\n"), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
		require.NoError(t, err)
	}
	_, stat, err := p.conn.Get(p.path)
	require.NoError(t, err)
	_, err = p.conn.Set(p.path, []byte("version: 1\n"), stat.Version)
	require.NoError(t, err)

	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Watch(ctx)
	require.NoError(t, err)

	// let the first data watch arm
	time.Sleep(200 * time.Millisecond)
	_, err = p.conn.Set(p.path, []byte("version: 2\n"), -1)
	require.NoError(t, err)
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}
