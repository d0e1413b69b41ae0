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

package agentstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	cfg := &config.DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "agents.db")}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	store, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func stores(t *testing.T) map[string]Store {
	mem, err := NewMemoryStore(nil)
	require.NoError(t, err)
	return map[string]Store{"memory": mem, "sqlite": newSQLiteStore(t)}
}

func TestStore_CRUD(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			desc := rag.AgentDescriptor{
				Kind: "remote",
				Name: "n8n",
				Auth: "token",
				Config: map[string]any{
					"args": []any{"npx", "-y", "supergateway", "--sse", "http://n8n/mcp"},
				},
			}
			created, err := store.Put(ctx, "n8n", desc)
			require.NoError(t, err)
			assert.Equal(t, "n8n", created.ID)
			assert.Equal(t, rag.AgentMCP, created.Kind, "kind spellings are normalized")

			got, err := store.Get(ctx, "n8n")
			require.NoError(t, err)
			assert.Equal(t, "token", got.Auth)
			assert.Equal(t, desc.Config, got.Config)

			desc.Name = "n8n prod"
			_, err = store.Put(ctx, "n8n", desc)
			require.NoError(t, err)
			got, err = store.Get(ctx, "n8n")
			require.NoError(t, err)
			assert.Equal(t, "n8n prod", got.Name)

			generated, err := store.Put(ctx, "", rag.AgentDescriptor{Kind: rag.AgentWebhook, Endpoint: "http://hook"})
			require.NoError(t, err)
			_, err = uuid.Parse(generated.ID)
			assert.NoError(t, err)
			assert.Equal(t, generated.ID, generated.Name)

			list, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 2)

			require.NoError(t, store.Delete(ctx, "n8n"))
			_, err = store.Get(ctx, "n8n")
			assert.True(t, errors.Is(err, ErrNotFound))
			assert.True(t, errors.Is(store.Delete(ctx, "n8n"), ErrNotFound))
		})
	}
}

func TestStore_RejectsUnknownKind(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Put(context.Background(), "x", rag.AgentDescriptor{Kind: "carrier-pigeon"})
			assert.Error(t, err)
		})
	}
}

func TestNewMemoryStore_Seeds(t *testing.T) {
	store, err := NewMemoryStore(map[string]*rag.AgentDescriptor{
		"local": {Kind: rag.AgentLocal},
		"skip":  nil,
	})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "local")
	require.NoError(t, err)
	assert.Equal(t, "local", got.Name)

	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLStore_Rebind(t *testing.T) {
	s := &SQLStore{dialect: "postgres"}
	assert.Equal(t, "SELECT * FROM agents WHERE id = $1 AND kind = $2", s.rebind("SELECT * FROM agents WHERE id = ? AND kind = ?"))

	s.dialect = "mysql"
	assert.Equal(t, "WHERE id = ?", s.rebind("WHERE id = ?"))
}

func TestNewSQLStore_Validation(t *testing.T) {
	_, err := NewSQLStore(context.Background(), nil, "sqlite")
	assert.Error(t, err)
}
