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

package mcpclient

import (
	"context"
	"sync"
)

// Session carries the server-assigned session id between the exchanges of
// one orchestration call. It is created per call and never shared.
type Session struct {
	mu sync.Mutex
	id string
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// ID returns the captured session id. A nil session has none.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) set(id string) {
	if s == nil || id == "" {
		return
	}
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

type sessionKey struct{}

// WithSession attaches s to ctx so that exchanges made with ctx echo the
// session id the server handed out.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
