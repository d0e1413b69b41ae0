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

package observability

const (
	AttrAgentName  = "rag.agent.name"
	AttrAgentKind  = "rag.agent.kind"
	AttrCollection = "rag.collection"
	AttrContextLen = "rag.context.items"
	AttrToolName   = "rag.tool.name"
	AttrStrategy   = "rag.tool.strategy"
	AttrPath       = "rag.path"
	AttrOutcome    = "rag.outcome"
	AttrErrorType  = "error.type"

	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"

	SpanAnswer      = "rag.answer"
	SpanRetrieve    = "rag.retrieve"
	SpanResolve     = "rag.resolve"
	SpanDiscover    = "rag.discover"
	SpanInvoke      = "rag.invoke"
	SpanWorkflow    = "rag.workflow"
	SpanLocal       = "rag.local"
	SpanHTTPRequest = "http.request"

	DefaultServiceName = "ragdispatch"
	TracerName         = "github.com/kadirpekel/ragdispatch"
)
