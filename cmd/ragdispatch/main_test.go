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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

func TestPick(t *testing.T) {
	assert.Equal(t, "flag", pick("flag", "env", "cfg"))
	assert.Equal(t, "env", pick("", "env", "cfg"))
	assert.Equal(t, "cfg", pick("", "", "cfg"))
	assert.Equal(t, "", pick("", ""))
}

func TestInitLogger_FlagBeatsEnvAndConfig(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "not-a-level")

	cleanup, err := initLogger("debug", "", "", &config.LoggerConfig{Level: "error"})
	require.NoError(t, err)
	cleanup()

	_, err = initLogger("", "", "", &config.LoggerConfig{Level: "error"})
	assert.Error(t, err, "env wins over config when no flag is given")
}

func TestBuildDispatcher_Defaults(t *testing.T) {
	ctx := context.Background()
	cfg, loader, err := loadConfig(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, loader)

	store, err := openStore(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	d, err := buildDispatcher(cfg, store, nil)
	require.NoError(t, err)
	defer d.Close()

	live := &liveDispatcher{}
	live.swap(d)

	resp, err := live.Answer(ctx, &rag.Request{Query: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "Vector Search", resp.AgentUsed)
	assert.Empty(t, resp.Context)

	_, err = live.Answer(ctx, &rag.Request{})
	assert.True(t, rag.IsValidation(err))
}

func TestLoadConfig_SeedsAgentsIntoSQLStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  database: `+filepath.Join(dir, "agents.db")+`
agents:
  support:
    kind: remote
    name: Support
    config:
      url: https://tools.example.com/mcp
`), 0o600))

	ctx := context.Background()
	cfg, loader, err := loadConfig(ctx, path)
	require.NoError(t, err)
	defer loader.Close()

	store, err := openStore(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	agent, err := store.Get(ctx, "support")
	require.NoError(t, err)
	assert.Equal(t, rag.AgentMCP, agent.Kind)
}

func TestLoadConfig_Sources(t *testing.T) {
	ctx := context.Background()

	_, _, err := loadConfig(ctx, "s3://bucket/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config source")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: {port: 7070}\n"), 0o600))

	cfg, loader, err := loadConfig(ctx, "file://"+path)
	require.NoError(t, err)
	defer loader.Close()
	assert.Equal(t, 7070, cfg.Server.Port)
}
