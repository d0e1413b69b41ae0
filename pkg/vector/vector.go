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

// Package vector abstracts the stores that hold embedded passages.
package vector

import (
	"context"
	"fmt"

	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// ContentKey is the metadata key carrying a passage's text on upsert.
const ContentKey = "content"

// Result is one similarity match.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
}

// Provider is a vector store. A collection maps to the store's native
// grouping: a chromem collection, a qdrant collection or a pinecone index.
type Provider interface {
	Name() string
	Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error
	// Search returns at most topK matches, best first. A missing collection
	// yields an error wrapping rag.ErrCollectionNotFound.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)
	Delete(ctx context.Context, collection, id string) error
	HasCollection(ctx context.Context, collection string) (bool, error)
	CreateCollection(ctx context.Context, collection string, dimension int) error
	Close() error
}

// NewProvider creates the provider selected by cfg.
func NewProvider(cfg config.VectorConfig) (Provider, error) {
	switch cfg.Type {
	case "", config.VectorChromem:
		return NewChromemProvider(cfg.PersistPath, cfg.Compress)
	case config.VectorQdrant:
		return NewQdrantProvider(cfg)
	case config.VectorPinecone:
		return NewPineconeProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown vector type: %q", cfg.Type)
	}
}

func collectionNotFound(name string) error {
	return fmt.Errorf("collection %q: %w", name, rag.ErrCollectionNotFound)
}

// splitContent removes ContentKey from metadata and returns it separately.
func splitContent(metadata map[string]any) (string, map[string]any) {
	rest := make(map[string]any, len(metadata))
	var content string
	for k, v := range metadata {
		if k == ContentKey {
			if s, ok := v.(string); ok {
				content = s
				continue
			}
		}
		rest[k] = v
	}
	return content, rest
}
