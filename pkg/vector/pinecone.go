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
	"fmt"
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kadirpekel/ragdispatch/pkg/config"
)

// PineconeProvider maps collections to Pinecone indexes. Indexes must be
// created out of band.
type PineconeProvider struct {
	client    *pinecone.Client
	namespace string

	mu    sync.Mutex
	hosts map[string]string
}

// NewPineconeProvider creates a Pinecone client.
func NewPineconeProvider(cfg config.VectorConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Pinecone")
	}

	params := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		params.Host = cfg.Host
	}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}
	return &PineconeProvider{client: client, namespace: cfg.Namespace, hosts: make(map[string]string)}, nil
}

func (p *PineconeProvider) Name() string { return "pinecone" }

// connect opens a connection to the index, caching its data-plane host.
func (p *PineconeProvider) connect(ctx context.Context, index string) (*pinecone.IndexConnection, error) {
	p.mu.Lock()
	host, ok := p.hosts[index]
	p.mu.Unlock()

	if !ok {
		desc, err := p.client.DescribeIndex(ctx, index)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %s: %w", index, err)
		}
		host = desc.Host
		p.mu.Lock()
		p.hosts[index] = host
		p.mu.Unlock()
	}

	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: p.namespace})
	if err != nil {
		return nil, fmt.Errorf("failed to create index connection: %w", err)
	}
	return conn, nil
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	var md *pinecone.Metadata
	if len(metadata) > 0 {
		md, err = structpb.NewStruct(metadata)
		if err != nil {
			return fmt.Errorf("failed to convert metadata: %w", err)
		}
	}

	if _, err := conn.UpsertVectors(ctx, []*pinecone.Vector{{Id: id, Values: vector, Metadata: md}}); err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	exists, err := p.HasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, collectionNotFound(collection)
	}

	conn, err := p.connect(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query Pinecone: %w", err)
	}

	results := make([]Result, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		if match == nil || match.Vector == nil {
			continue
		}
		var metadata map[string]any
		if match.Vector.Metadata != nil {
			metadata = match.Vector.Metadata.AsMap()
		}
		content, rest := splitContent(metadata)
		results = append(results, Result{ID: match.Vector.Id, Score: match.Score, Content: content, Metadata: rest})
	}
	return results, nil
}

func (p *PineconeProvider) Delete(ctx context.Context, collection, id string) error {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to delete vector: %w", err)
	}
	return nil
}

func (p *PineconeProvider) HasCollection(ctx context.Context, collection string) (bool, error) {
	p.mu.Lock()
	_, cached := p.hosts[collection]
	p.mu.Unlock()
	if cached {
		return true, nil
	}

	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name == collection {
			return true, nil
		}
	}
	return false, nil
}

// CreateCollection only verifies that the index exists.
func (p *PineconeProvider) CreateCollection(ctx context.Context, collection string, _ int) error {
	exists, err := p.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("index %s does not exist; create it in the Pinecone console or API", collection)
	}
	return nil
}

func (p *PineconeProvider) Close() error { return nil }

var _ Provider = (*PineconeProvider)(nil)
