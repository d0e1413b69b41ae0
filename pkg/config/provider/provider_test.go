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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := map[string]Type{
		"":          TypeFile,
		"file":      TypeFile,
		"Consul":    TypeConsul,
		"kv":        TypeConsul,
		"etcd":      TypeEtcd,
		"zk":        TypeZookeeper,
		"zookeeper": TypeZookeeper,
	}
	for in, want := range tests {
		got, err := ParseType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseType("s3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consul, etcd, file, zookeeper")
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw  string
		want ProviderConfig
	}{
		{"configs/rag.yaml", ProviderConfig{Type: TypeFile, Path: "configs/rag.yaml"}},
		{"file:///etc/rag.yaml", ProviderConfig{Type: TypeFile, Path: "/etc/rag.yaml"}},
		{
			"consul://consul:8500/ragdispatch/config",
			ProviderConfig{Type: TypeConsul, Path: "ragdispatch/config", Endpoints: []string{"consul:8500"}},
		},
		{
			"etcd://a:2379,b:2379/rag/config?timeout=3s",
			ProviderConfig{Type: TypeEtcd, Path: "/rag/config", Endpoints: []string{"a:2379", "b:2379"}, DialTimeout: 3 * time.Second},
		},
		{"zk:///rag", ProviderConfig{Type: TypeZookeeper, Path: "/rag"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseURL("etcd://h/k?timeout=soon")
	assert.Error(t, err)
	_, err = ParseURL("s3://bucket/key")
	assert.Error(t, err)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(ProviderConfig{Type: TypeFile})
	assert.Error(t, err)
}

func TestFileProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1"), 0o600))

	p, err := New(ProviderConfig{Path: path})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, TypeFile, p.Type())
	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a: 1", string(data))

	missing, _ := NewFileProvider(filepath.Join(t.TempDir(), "nope.yaml"))
	_, err = missing.Load(context.Background())
	assert.Error(t, err)
}

func TestFileProvider_EmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	_, err = p.Load(context.Background())
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestFileProvider_WatchSignalsAndStops(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1"), 0o600))

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := p.Watch(ctx)
	require.NoError(t, err)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("a: 2"), 0o600))
	}

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change signalled")
	}

	cancel()
	select {
	case _, ok := <-changes:
		if ok {
			// A trailing signal may be pending; the channel must close next.
			_, ok = <-changes
		}
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestFileProvider_WatchAfterClose(t *testing.T) {
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "c.yaml"))
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Watch(context.Background())
	assert.Error(t, err)
}
