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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

func TestChromemProvider(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider("", false)
	require.NoError(t, err)
	defer p.Close()

	has, err := p.HasCollection(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = p.Search(ctx, "docs", []float32{1, 0}, 3)
	assert.True(t, errors.Is(err, rag.ErrCollectionNotFound))

	require.NoError(t, p.Upsert(ctx, "docs", "a", []float32{1, 0}, map[string]any{ContentKey: "alpha", "source": "a.md"}))
	require.NoError(t, p.Upsert(ctx, "docs", "b", []float32{0, 1}, map[string]any{ContentKey: "beta", "page": 2}))

	has, err = p.HasCollection(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, has)

	// topK larger than the collection is clamped.
	results, err := p.Search(ctx, "docs", []float32{1, 0.1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "alpha", results[0].Content)
	assert.Equal(t, "a.md", results[0].Metadata["source"])
	assert.NotContains(t, results[0].Metadata, ContentKey)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, "2", results[1].Metadata["page"])

	require.NoError(t, p.Delete(ctx, "docs", "a"))
	results, err = p.Search(ctx, "docs", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestChromemProvider_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	p, err := NewChromemProvider("", false)
	require.NoError(t, err)

	require.NoError(t, p.CreateCollection(ctx, "empty", 3))
	results, err := p.Search(ctx, "empty", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemProvider_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p, err := NewChromemProvider(dir, false)
	require.NoError(t, err)
	require.NoError(t, p.Upsert(ctx, "docs", "a", []float32{1, 0}, map[string]any{ContentKey: "alpha"}))
	require.NoError(t, p.Close())

	reopened, err := NewChromemProvider(dir, false)
	require.NoError(t, err)
	results, err := reopened.Search(ctx, "docs", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha", results[0].Content)
}

func TestPointID(t *testing.T) {
	id, native := pointID("42")
	assert.True(t, native)
	assert.Equal(t, uint64(42), id.GetNum())

	id, native = pointID("6f1c2b4e-8a0d-4e7b-9f3a-2c5d7e9a1b3c")
	assert.True(t, native)
	assert.Equal(t, "6f1c2b4e-8a0d-4e7b-9f3a-2c5d7e9a1b3c", id.GetUuid())

	a, native := pointID("doc-1#chunk-3")
	assert.False(t, native)
	b, _ := pointID("doc-1#chunk-3")
	assert.Equal(t, a.GetUuid(), b.GetUuid(), "derived ids are stable")
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.VectorConfig{})
	require.NoError(t, err)
	assert.Equal(t, "chromem", p.Name())

	_, err = NewProvider(config.VectorConfig{Type: config.VectorPinecone})
	assert.Error(t, err)

	_, err = NewProvider(config.VectorConfig{Type: "weaviate"})
	assert.Error(t, err)
}
