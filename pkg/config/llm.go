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
	"os"
	"time"

	"github.com/kadirpekel/ragdispatch/pkg/httpclient"
)

// LLMProvider identifies the generative backend used by the local responder.
type LLMProvider string

const (
	LLMProviderOllama LLMProvider = "ollama"
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig configures the optional generative local responder. When the
// section is absent, the local responder only cites passages.
type LLMConfig struct {
	Provider    LLMProvider           `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,enum=ollama,enum=openai,enum=gemini,default=ollama"`
	Model       string                `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model"`
	APIKey      string                `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=Use ${ENV_VAR}"`
	BaseURL     string                `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL"`
	Temperature *float64              `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"minimum=0,maximum=2,default=0.3"`
	MaxTokens   int                   `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"minimum=1,default=1024"`
	Timeout     time.Duration         `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRetries  *int                  `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"minimum=0,default=3"`
	RetryDelay  time.Duration         `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
	TLS         *httpclient.TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// SetDefaults applies default values.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = LLMProviderOllama
	}
	if c.Model == "" {
		switch c.Provider {
		case LLMProviderOpenAI:
			c.Model = "gpt-4o-mini"
		case LLMProviderGemini:
			c.Model = "gemini-2.0-flash"
		default:
			c.Model = "llama3.2"
		}
	}
	if c.BaseURL == "" {
		switch c.Provider {
		case LLMProviderOpenAI:
			c.BaseURL = "https://api.openai.com/v1"
		case LLMProviderOllama:
			c.BaseURL = "http://localhost:11434"
		}
	}
	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(string(c.Provider))
	}
	if c.Temperature == nil {
		t := 0.3
		c.Temperature = &t
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries == nil {
		n := defaultMaxRetries
		c.MaxRetries = &n
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderOllama:
	case LLMProviderOpenAI, LLMProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for provider %q", c.Provider)
		}
	default:
		return fmt.Errorf("invalid provider %q (valid: ollama, openai, gemini)", c.Provider)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	return nil
}

// Retries returns the retry budget. Zero disables retries.
func (c *LLMConfig) Retries() int {
	return retriesOr(c.MaxRetries)
}

const defaultMaxRetries = 3

func retriesOr(n *int) int {
	if n == nil {
		return defaultMaxRetries
	}
	return *n
}

func apiKeyFromEnv(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			return v
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}
