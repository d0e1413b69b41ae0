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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

const createAgentsTableSQL = `
CREATE TABLE IF NOT EXISTS agents (
    id VARCHAR(255) PRIMARY KEY,
    kind VARCHAR(32) NOT NULL,
    name VARCHAR(255) NOT NULL,
    endpoint TEXT,
    auth TEXT,
    raw_config TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

// SQLStore keeps agents in a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// OpenDB opens and pings the configured database. SQLite runs on a single
// connection in WAL mode.
func OpenDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	driverName := cfg.DriverName()

	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids "database is locked".
	if driverName == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.MaxConns)
		}
		if cfg.MaxIdle > 0 {
			db.SetMaxIdleConns(cfg.MaxIdle)
		}
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database %q: %w", cfg.Driver, cfg.Database, err)
	}

	if driverName == "sqlite3" {
		if _, err := db.ExecContext(pingCtx, "PRAGMA journal_mode=WAL"); err != nil {
			slog.Warn("Failed to enable WAL mode", "error", err)
		}
		if _, err := db.ExecContext(pingCtx, "PRAGMA busy_timeout=10000"); err != nil {
			slog.Warn("Failed to set busy timeout", "error", err)
		}
	}

	return db, nil
}

// NewSQLStore creates the agents table if needed.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if _, err := db.ExecContext(ctx, createAgentsTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create agents table: %w", err)
	}
	return s, nil
}

// Open connects to cfg and returns a ready store.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*SQLStore, error) {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLStore(ctx, db, cfg.Dialect())
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const selectAgentSQL = `SELECT id, kind, name, endpoint, auth, raw_config, created_at, updated_at FROM agents`

func (s *SQLStore) Get(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectAgentSQL+` WHERE id = ?`), id)
	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent %s: %w", id, err)
	}
	return agent, nil
}

func (s *SQLStore) List(ctx context.Context) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, selectAgentSQL+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		out = append(out, agent)
	}
	return out, rows.Err()
}

func (s *SQLStore) Put(ctx context.Context, id string, desc rag.AgentDescriptor) (*Agent, error) {
	id, desc, err := prepare(id, desc)
	if err != nil {
		return nil, err
	}

	rawConfig, err := json.Marshal(desc.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent config: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	var upsert string
	switch s.dialect {
	case "mysql":
		upsert = `INSERT INTO agents (id, kind, name, endpoint, auth, raw_config, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE kind = VALUES(kind), name = VALUES(name), endpoint = VALUES(endpoint),
    auth = VALUES(auth), raw_config = VALUES(raw_config), updated_at = VALUES(updated_at)`
	default:
		upsert = `INSERT INTO agents (id, kind, name, endpoint, auth, raw_config, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET kind = excluded.kind, name = excluded.name, endpoint = excluded.endpoint,
    auth = excluded.auth, raw_config = excluded.raw_config, updated_at = excluded.updated_at`
	}

	_, err = s.db.ExecContext(ctx, s.rebind(upsert),
		id, string(desc.Kind), desc.Name, desc.Endpoint, desc.Auth, string(rawConfig), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to store agent %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM agents WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete agent %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (*Agent, error) {
	var (
		agent     Agent
		kind      string
		endpoint  sql.NullString
		auth      sql.NullString
		rawConfig string
	)
	if err := row.Scan(&agent.ID, &kind, &agent.Name, &endpoint, &auth, &rawConfig, &agent.CreatedAt, &agent.UpdatedAt); err != nil {
		return nil, err
	}
	agent.Kind = rag.AgentKind(kind)
	agent.Endpoint = endpoint.String
	agent.Auth = auth.String
	if rawConfig != "" && rawConfig != "null" {
		if err := json.Unmarshal([]byte(rawConfig), &agent.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal raw_config: %w", err)
		}
	}
	return &agent, nil
}

var _ Store = (*SQLStore)(nil)
