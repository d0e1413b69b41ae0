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

package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/philippgille/chromem-go"
)

// ChromemProvider keeps vectors in process with chromem-go, optionally
// persisted to a directory.
type ChromemProvider struct {
	db *chromem.DB
}

var errPrecomputed = errors.New("chromem: embedding function called but vectors are pre-computed")

// Vectors always arrive pre-computed from the embedder package.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errPrecomputed
}

// NewChromemProvider creates an in-memory store, or a persistent one when
// persistPath is set.
func NewChromemProvider(persistPath string, compress bool) (*ChromemProvider, error) {
	if persistPath == "" {
		slog.Debug("Created in-memory vector database")
		return &ChromemProvider{db: chromem.NewDB()}, nil
	}

	if err := os.MkdirAll(persistPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create persist directory: %w", err)
	}
	db, err := chromem.NewPersistentDB(persistPath, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database at %s: %w", persistPath, err)
	}
	slog.Info("Opened persistent vector database", "path", persistPath, "collections", len(db.ListCollections()))
	return &ChromemProvider{db: db}, nil
}

func (p *ChromemProvider) Name() string { return "chromem" }

// Upsert stores the vector. The collection is created on first use.
func (p *ChromemProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	col, err := p.db.GetOrCreateCollection(collection, nil, noEmbed)
	if err != nil {
		return fmt.Errorf("failed to get collection %q: %w", collection, err)
	}

	content, rest := splitContent(metadata)
	strMetadata := make(map[string]string, len(rest))
	for k, v := range rest {
		strMetadata[k] = fmt.Sprint(v)
	}

	doc := chromem.Document{ID: id, Content: content, Metadata: strMetadata, Embedding: vector}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (p *ChromemProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	col := p.db.GetCollection(collection, noEmbed)
	if col == nil {
		return nil, collectionNotFound(collection)
	}

	// chromem rejects n larger than the document count.
	n := min(topK, col.Count())
	if n <= 0 {
		return nil, nil
	}

	matches, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		metadata := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			metadata[k] = v
		}
		out = append(out, Result{ID: m.ID, Score: m.Similarity, Content: m.Content, Metadata: metadata})
	}
	return out, nil
}

func (p *ChromemProvider) Delete(ctx context.Context, collection, id string) error {
	col := p.db.GetCollection(collection, noEmbed)
	if col == nil {
		return collectionNotFound(collection)
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (p *ChromemProvider) HasCollection(_ context.Context, collection string) (bool, error) {
	return p.db.GetCollection(collection, noEmbed) != nil, nil
}

// CreateCollection ignores dimension; chromem infers it from the first vector.
func (p *ChromemProvider) CreateCollection(_ context.Context, collection string, _ int) error {
	if _, err := p.db.GetOrCreateCollection(collection, nil, noEmbed); err != nil {
		return fmt.Errorf("failed to create collection %q: %w", collection, err)
	}
	return nil
}

func (p *ChromemProvider) Close() error { return nil }

var _ Provider = (*ChromemProvider)(nil)
