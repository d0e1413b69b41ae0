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

// Package embedder turns query text into vectors for similarity search.
package embedder

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/httpclient"
)

// Embedder produces vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
	Close() error
}

// New creates the embedder selected by cfg.
func New(cfg config.EmbedderConfig) (Embedder, error) {
	client := httpclient.New(
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithMaxRetries(cfg.Retries()),
	)
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	switch cfg.Provider {
	case config.EmbedderOllama:
		return &OllamaEmbedder{client: client, baseURL: baseURL, model: cfg.Model, dimension: cfg.Dimension}, nil
	case config.EmbedderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("API key is required for OpenAI embedder")
		}
		return &OpenAIEmbedder{
			client:    httpclient.New(httpclient.WithTimeout(cfg.Timeout), httpclient.WithMaxRetries(cfg.Retries()), httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders)),
			baseURL:   baseURL,
			apiKey:    cfg.APIKey,
			model:     cfg.Model,
			dimension: cfg.Dimension,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", cfg.Provider)
	}
}

func single(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("received empty embedding")
	}
	return vectors[0], nil
}
