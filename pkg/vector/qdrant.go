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
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/kadirpekel/ragdispatch/pkg/config"
)

// originalIDKey holds the caller's id when it is not a valid qdrant point id.
const originalIDKey = "_id"

// QdrantProvider talks to Qdrant over gRPC.
type QdrantProvider struct {
	client *qdrant.Client
}

// NewQdrantProvider connects to the configured Qdrant host.
func NewQdrantProvider(cfg config.VectorConfig) (*QdrantProvider, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		APIKey:      cfg.APIKey,
		UseTLS:      cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{grpc.WithUserAgent("ragdispatch")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantProvider{client: client}, nil
}

func (p *QdrantProvider) Name() string { return "qdrant" }

// pointID maps arbitrary ids onto qdrant's uuid/uint id space.
func pointID(id string) (*qdrant.PointId, bool) {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(n), true
	}
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewID(id), true
	}
	return qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()), false
}

func (p *QdrantProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	if err := p.CreateCollection(ctx, collection, len(vector)); err != nil {
		return err
	}

	pid, native := pointID(id)
	payload := make(map[string]*qdrant.Value, len(metadata)+1)
	for key, value := range metadata {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return fmt.Errorf("failed to convert metadata value for key %s: %w", key, err)
		}
		payload[key] = val
	}
	if !native {
		payload[originalIDKey] = qdrant.NewValueString(id)
	}

	_, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      pid,
			Vectors: qdrant.NewVectors(vector...),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

func (p *QdrantProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	exists, err := p.HasCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, collectionNotFound(collection)
	}

	resp, err := p.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	return convertQdrantPoints(resp.GetResult()), nil
}

func (p *QdrantProvider) Delete(ctx context.Context, collection, id string) error {
	pid, _ := pointID(id)
	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{pid}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point %s: %w", id, err)
	}
	return nil
}

func (p *QdrantProvider) HasCollection(ctx context.Context, collection string) (bool, error) {
	exists, err := p.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %q: %w", collection, err)
	}
	return exists, nil
}

// CreateCollection creates a cosine-distance collection if it is missing.
func (p *QdrantProvider) CreateCollection(ctx context.Context, collection string, dimension int) error {
	exists, err := p.HasCollection(ctx, collection)
	if err != nil || exists {
		return err
	}
	err = p.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (p *QdrantProvider) Close() error {
	return p.client.Close()
}

func convertQdrantPoints(points []*qdrant.ScoredPoint) []Result {
	results := make([]Result, 0, len(points))
	for _, point := range points {
		var id string
		switch opt := point.GetId().GetPointIdOptions().(type) {
		case *qdrant.PointId_Uuid:
			id = opt.Uuid
		case *qdrant.PointId_Num:
			id = strconv.FormatUint(opt.Num, 10)
		}

		metadata := make(map[string]any, len(point.GetPayload()))
		for key, value := range point.GetPayload() {
			metadata[key] = qdrantValue(value)
		}
		if original, ok := metadata[originalIDKey].(string); ok {
			id = original
			delete(metadata, originalIDKey)
		}
		content, rest := splitContent(metadata)

		results = append(results, Result{ID: id, Score: point.GetScore(), Content: content, Metadata: rest})
	}
	return results
}

func qdrantValue(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_ListValue:
		list := make([]any, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			list = append(list, qdrantValue(item))
		}
		return list
	case *qdrant.Value_StructValue:
		m := make(map[string]any, len(k.StructValue.GetFields()))
		for key, item := range k.StructValue.GetFields() {
			m[key] = qdrantValue(item)
		}
		return m
	default:
		return nil
	}
}

var _ Provider = (*QdrantProvider)(nil)
