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
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DatabaseConfig points the agent registry at a SQL database instead of
// keeping it in memory. Agents from the config file are upserted on start.
type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver" jsonschema:"title=Database Type,enum=postgres,enum=mysql,enum=sqlite,enum=sqlite3,default=sqlite"`

	Host string `yaml:"host,omitempty" json:"host,omitempty"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty"`

	// Database is the schema name, or the file path for SQLite.
	Database string `yaml:"database" json:"database"`

	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	SSLMode  string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`

	MaxConns    int           `yaml:"max_conns,omitempty" json:"max_conns,omitempty" jsonschema:"minimum=1,default=10"`
	MaxIdle     int           `yaml:"max_idle,omitempty" json:"max_idle,omitempty" jsonschema:"minimum=1,default=2"`
	MaxLifetime time.Duration `yaml:"max_lifetime,omitempty" json:"max_lifetime,omitempty" jsonschema:"type=string,default=1h"`
}

type dbDriver struct {
	sqlName string // name registered with database/sql
	dialect string // placeholder style used by the agent store
	port    int
	remote  bool
}

var dbDrivers = map[string]dbDriver{
	"postgres": {sqlName: "postgres", dialect: "postgres", port: 5432, remote: true},
	"mysql":    {sqlName: "mysql", dialect: "mysql", port: 3306, remote: true},
	"sqlite":   {sqlName: "sqlite3", dialect: "sqlite"},
	"sqlite3":  {sqlName: "sqlite3", dialect: "sqlite"},
}

func (c *DatabaseConfig) driver() dbDriver { return dbDrivers[c.Driver] }

func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 2
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = time.Hour
	}
	if c.Port == 0 {
		c.Port = c.driver().port
	}
	if c.Driver == "postgres" && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

func (c *DatabaseConfig) Validate() error {
	d, ok := dbDrivers[c.Driver]
	switch {
	case c.Driver == "":
		return fmt.Errorf("driver is required")
	case !ok:
		return fmt.Errorf("invalid driver %q (valid: postgres, mysql, sqlite)", c.Driver)
	case d.remote && c.Host == "":
		return fmt.Errorf("host is required for %s", c.Driver)
	case c.Database == "":
		return fmt.Errorf("database is required")
	case c.MaxConns < 0 || c.MaxIdle < 0 || c.MaxLifetime < 0:
		return fmt.Errorf("connection pool limits must be non-negative")
	}
	return nil
}

// DSN renders the connection string understood by the driver.
func (c *DatabaseConfig) DSN() string {
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	switch c.Driver {
	case "postgres":
		u := url.URL{Scheme: "postgres", Host: addr, Path: "/" + c.Database}
		if c.Username != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		}
		if c.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
		}
		return u.String()
	case "mysql":
		m := mysql.NewConfig()
		m.Net = "tcp"
		m.Addr = addr
		m.DBName = c.Database
		m.User = c.Username
		m.Passwd = c.Password
		m.ParseTime = true
		return m.FormatDSN()
	default:
		return c.Database
	}
}

func (c *DatabaseConfig) DriverName() string { return c.driver().sqlName }

// Dialect selects placeholder and upsert syntax in the agent store.
func (c *DatabaseConfig) Dialect() string { return c.driver().dialect }
