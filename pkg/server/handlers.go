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

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/ragdispatch/pkg/agentstore"
	"github.com/kadirpekel/ragdispatch/pkg/endpoint"
	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{"status": "ok"}
	if s.version != "" {
		body["version"] = s.version
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req rag.Request
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := s.answerer.Answer(r.Context(), &req)
	if err != nil {
		if rag.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		slog.Error("Query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// agentView is a stored agent with its resolved endpoint. Credentials are
// never echoed: Auth shadows the stored credential and Config is redacted.
type agentView struct {
	*agentstore.Agent
	Auth        string         `json:"auth,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	ResolvedURL string         `json:"resolvedUrl,omitempty"`
	URLRule     string         `json:"urlRule,omitempty"`
	Transport   string         `json:"transport,omitempty"`
}

func view(a *agentstore.Agent) agentView {
	ep := endpoint.Resolve(&a.AgentDescriptor)
	return agentView{
		Agent:       a,
		Config:      endpoint.Redact(a.Config),
		ResolvedURL: ep.URL,
		URLRule:     string(ep.URLRule),
		Transport:   string(ep.Transport),
	}
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.agents.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]agentView, 0, len(agents))
	for _, a := range agents {
		out = append(out, view(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.agents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(agent))
}

func (s *Server) handlePutAgent(w http.ResponseWriter, r *http.Request) {
	var desc rag.AgentDescriptor
	if err := decode(w, r, &desc); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := rag.ParseAgentKind(string(desc.Kind)); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	agent, err := s.agents.Put(r.Context(), chi.URLParam(r, "id"), desc)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(agent))
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.agents.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, agentstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
