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

package agentstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// MemoryStore keeps agents in a map.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewMemoryStore creates a store seeded with agents.
func NewMemoryStore(agents map[string]*rag.AgentDescriptor) (*MemoryStore, error) {
	s := &MemoryStore{agents: make(map[string]*Agent)}
	if err := Seed(context.Background(), s, agents); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return clone(agent), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		out = append(out, clone(agent))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, id string, desc rag.AgentDescriptor) (*Agent, error) {
	id, desc, err := prepare(id, desc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	agent := &Agent{ID: id, AgentDescriptor: desc, CreatedAt: now, UpdatedAt: now}
	if existing, ok := s.agents[id]; ok {
		agent.CreatedAt = existing.CreatedAt
	}
	s.agents[id] = clone(agent)
	return agent, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	delete(s.agents, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func clone(a *Agent) *Agent {
	c := *a
	c.Config = maps.Clone(a.Config)
	return &c
}

var _ Store = (*MemoryStore)(nil)
