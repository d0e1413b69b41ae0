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

// Package agentstore persists agent descriptors so requests can refer to
// an agent by id.
package agentstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// ErrNotFound is returned for unknown agent ids.
var ErrNotFound = errors.New("agent not found")

// Agent is a stored descriptor.
type Agent struct {
	ID string `json:"id"`
	rag.AgentDescriptor
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store holds agents.
type Store interface {
	Get(ctx context.Context, id string) (*Agent, error)
	// List returns agents ordered by id.
	List(ctx context.Context) ([]*Agent, error)
	// Put creates or replaces an agent. An empty id gets a new uuid.
	Put(ctx context.Context, id string, agent rag.AgentDescriptor) (*Agent, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Seed writes every configured agent into store.
func Seed(ctx context.Context, store Store, agents map[string]*rag.AgentDescriptor) error {
	for id, agent := range agents {
		if agent == nil {
			continue
		}
		if _, err := store.Put(ctx, id, *agent); err != nil {
			return fmt.Errorf("failed to seed agent %s: %w", id, err)
		}
	}
	return nil
}

func prepare(id string, agent rag.AgentDescriptor) (string, rag.AgentDescriptor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	kind, err := rag.ParseAgentKind(string(agent.Kind))
	if err != nil {
		return "", agent, err
	}
	agent.Kind = kind
	if agent.Name == "" {
		agent.Name = id
	}
	return id, agent, nil
}
