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

// Package config defines the ragdispatch configuration and loads it from a
// file or a remote key-value store.
package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// Config is the root configuration.
//
// Example:
//
//	server:
//	  port: 8080
//	vector:
//	  type: chromem
//	embedder:
//	  provider: ollama
//	  model: nomic-embed-text
//	agents:
//	  support:
//	    kind: mcp
//	    name: Support Bot
//	    config:
//	      url: https://flows.example.com/mcp
type Config struct {
	Server        ServerConfig                    `yaml:"server,omitempty" json:"server,omitempty"`
	Logger        LoggerConfig                    `yaml:"logger,omitempty" json:"logger,omitempty"`
	Vector        VectorConfig                    `yaml:"vector,omitempty" json:"vector,omitempty"`
	Embedder      EmbedderConfig                  `yaml:"embedder,omitempty" json:"embedder,omitempty"`
	LLM           *LLMConfig                      `yaml:"llm,omitempty" json:"llm,omitempty"`
	Retrieval     RetrievalConfig                 `yaml:"retrieval,omitempty" json:"retrieval,omitempty"`
	Dispatch      DispatchConfig                  `yaml:"dispatch,omitempty" json:"dispatch,omitempty"`
	Agents        map[string]*rag.AgentDescriptor `yaml:"agents,omitempty" json:"agents,omitempty"`
	Database      *DatabaseConfig                 `yaml:"database,omitempty" json:"database,omitempty"`
	Observability ObservabilityConfig             `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logger.SetDefaults()
	c.Vector.SetDefaults()
	c.Embedder.SetDefaults()
	if c.LLM != nil {
		c.LLM.SetDefaults()
	}
	c.Retrieval.SetDefaults()
	c.Dispatch.SetDefaults()
	if c.Database != nil {
		c.Database.SetDefaults()
	}
	c.Observability.SetDefaults()

	if c.Agents == nil {
		c.Agents = make(map[string]*rag.AgentDescriptor)
	}
	for id, agent := range c.Agents {
		if agent == nil {
			continue
		}
		if agent.Name == "" {
			agent.Name = id
		}
		if agent.Kind == "" {
			agent.Kind = rag.AgentMCP
		}
	}
}

// Validate checks every section and joins the failures.
func (c *Config) Validate() error {
	var errs []error
	check := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}

	check("server", c.Server.Validate())
	check("logger", c.Logger.Validate())
	check("vector", c.Vector.Validate())
	check("embedder", c.Embedder.Validate())
	if c.LLM != nil {
		check("llm", c.LLM.Validate())
	}
	check("retrieval", c.Retrieval.Validate())
	check("dispatch", c.Dispatch.Validate())
	if c.Database != nil {
		check("database", c.Database.Validate())
	}
	check("observability", c.Observability.Validate())

	for _, id := range c.AgentIDs() {
		agent := c.Agents[id]
		if agent == nil {
			errs = append(errs, fmt.Errorf("agents.%s: empty definition", id))
			continue
		}
		if _, err := rag.ParseAgentKind(string(agent.Kind)); err != nil {
			errs = append(errs, fmt.Errorf("agents.%s: %w", id, err))
		}
	}

	return errors.Join(errs...)
}

// AgentIDs returns the configured agent ids in sorted order.
func (c *Config) AgentIDs() []string {
	ids := make([]string, 0, len(c.Agents))
	for id := range c.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
