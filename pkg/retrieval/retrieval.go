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

// Package retrieval finds context passages for a question.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/embedder"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
	"github.com/kadirpekel/ragdispatch/pkg/vector"
)

// Query describes one lookup.
type Query struct {
	Text            string
	TopK            int
	MinScore        float64
	IncludeContent  bool
	IncludeMetadata bool
}

// Searcher returns passages for a query, best first.
type Searcher interface {
	Search(ctx context.Context, collection string, q Query) ([]rag.ContextItem, error)
}

// VectorSearcher embeds the query and searches a vector store.
type VectorSearcher struct {
	embedder          embedder.Embedder
	provider          vector.Provider
	defaultCollection string
	maxTopK           int
}

// Option configures a VectorSearcher.
type Option func(*VectorSearcher)

// WithDefaultCollection sets the collection searched when a request names none.
func WithDefaultCollection(name string) Option {
	return func(s *VectorSearcher) {
		s.defaultCollection = name
	}
}

// WithMaxTopK caps the number of passages returned.
func WithMaxTopK(n int) Option {
	return func(s *VectorSearcher) {
		if n > 0 {
			s.maxTopK = n
		}
	}
}

// NewVectorSearcher creates a VectorSearcher.
func NewVectorSearcher(e embedder.Embedder, p vector.Provider, opts ...Option) (*VectorSearcher, error) {
	if e == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if p == nil {
		return nil, fmt.Errorf("vector provider is required")
	}
	s := &VectorSearcher{embedder: e, provider: p, maxTopK: 50}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search returns up to q.TopK passages scoring at least q.MinScore, sorted
// by score descending. No collection at all yields no context.
func (s *VectorSearcher) Search(ctx context.Context, collection string, q Query) ([]rag.ContextItem, error) {
	if collection == "" {
		collection = s.defaultCollection
	}
	if collection == "" {
		slog.Debug("No collection selected, skipping retrieval")
		return nil, nil
	}

	exists, err := s.provider.HasCollection(ctx, collection)
	if err != nil {
		return nil, &rag.RetrievalError{Collection: collection, Err: err}
	}
	if !exists {
		return nil, &rag.RetrievalError{Collection: collection, Err: rag.ErrCollectionNotFound}
	}

	topK := min(max(q.TopK, 1), s.maxTopK)

	vec, err := s.embedder.Embed(ctx, strings.TrimSpace(q.Text))
	if err != nil {
		return nil, &rag.RetrievalError{Collection: collection, Err: fmt.Errorf("failed to embed query: %w", err)}
	}

	results, err := s.provider.Search(ctx, collection, vec, topK)
	if err != nil {
		return nil, &rag.RetrievalError{Collection: collection, Err: err}
	}

	items := make([]rag.ContextItem, 0, len(results))
	for _, r := range results {
		score := float64(r.Score)
		if score < q.MinScore {
			continue
		}
		item := rag.ContextItem{ID: r.ID, Score: score}
		if q.IncludeContent {
			item.Content = r.Content
		}
		if q.IncludeMetadata && len(r.Metadata) > 0 {
			item.Metadata = r.Metadata
		}
		items = append(items, item)
	}

	SortByScore(items)
	if len(items) > topK {
		items = items[:topK]
	}

	slog.Debug("Retrieved context", "collection", collection, "candidates", len(results), "kept", len(items), "min_score", q.MinScore)
	return items, nil
}

// SortByScore orders items by score, highest first, keeping ties in place.
func SortByScore(items []rag.ContextItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}

var _ Searcher = (*VectorSearcher)(nil)
