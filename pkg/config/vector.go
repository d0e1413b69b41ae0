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
	"time"
)

// Vector store types.
const (
	VectorChromem  = "chromem"
	VectorQdrant   = "qdrant"
	VectorPinecone = "pinecone"
)

// VectorConfig selects and configures the vector store holding collections.
type VectorConfig struct {
	// Type is chromem, qdrant or pinecone.
	Type string `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"enum=chromem,enum=qdrant,enum=pinecone,default=chromem"`

	// Host for qdrant (hostname) or pinecone (API host override).
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port is the qdrant gRPC port.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	UseTLS bool `yaml:"use_tls,omitempty" json:"use_tls,omitempty"`

	// PersistPath enables chromem file persistence.
	PersistPath string `yaml:"persist_path,omitempty" json:"persist_path,omitempty"`

	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty"`

	// Namespace scopes pinecone queries.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// SetDefaults applies default values.
func (c *VectorConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = VectorChromem
	}
	if c.Type == VectorQdrant {
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 6334
		}
	}
}

// Validate checks the vector configuration.
func (c *VectorConfig) Validate() error {
	switch c.Type {
	case VectorChromem, VectorQdrant:
		return nil
	case VectorPinecone:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for pinecone")
		}
		return nil
	default:
		return fmt.Errorf("unknown vector type %q (valid: chromem, qdrant, pinecone)", c.Type)
	}
}

// Embedder providers.
const (
	EmbedderOllama = "ollama"
	EmbedderOpenAI = "openai"
)

// EmbedderConfig configures query embedding.
type EmbedderConfig struct {
	Provider   string        `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"enum=ollama,enum=openai,default=ollama"`
	Model      string        `yaml:"model,omitempty" json:"model,omitempty"`
	BaseURL    string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey     string        `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Dimension  int           `yaml:"dimension,omitempty" json:"dimension,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRetries *int          `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"minimum=0,default=3"`
}

// SetDefaults applies default values.
func (c *EmbedderConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = EmbedderOllama
	}
	switch c.Provider {
	case EmbedderOllama:
		if c.Model == "" {
			c.Model = "nomic-embed-text"
		}
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
		if c.Dimension == 0 {
			c.Dimension = 768
		}
	case EmbedderOpenAI:
		if c.Model == "" {
			c.Model = "text-embedding-3-small"
		}
		if c.BaseURL == "" {
			c.BaseURL = "https://api.openai.com/v1"
		}
		if c.APIKey == "" {
			c.APIKey = apiKeyFromEnv("openai")
		}
		if c.Dimension == 0 {
			c.Dimension = 1536
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == nil {
		n := defaultMaxRetries
		c.MaxRetries = &n
	}
}

// Retries returns the retry budget. Zero disables retries.
func (c EmbedderConfig) Retries() int {
	return retriesOr(c.MaxRetries)
}

// Validate checks the embedder configuration.
func (c *EmbedderConfig) Validate() error {
	switch c.Provider {
	case EmbedderOllama:
	case EmbedderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for openai")
		}
	default:
		return fmt.Errorf("unknown embedder provider %q (valid: ollama, openai)", c.Provider)
	}
	if c.Dimension < 0 {
		return fmt.Errorf("dimension must be non-negative")
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	return nil
}
