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

package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))
}

func TestTokenCounter_Estimated(t *testing.T) {
	tc := &TokenCounter{model: "offline"}
	assert.False(t, tc.Exact())
	assert.Equal(t, "offline", tc.Model())
	assert.Equal(t, 3, tc.Count("abcdefghij"))
	assert.Equal(t, "abcdefgh", tc.Truncate("abcdefghij", 2))
	assert.Equal(t, "", tc.Truncate("abc", 0))
}

func TestTokenCounter_FitPassages(t *testing.T) {
	tc := &TokenCounter{}
	passages := []string{strings.Repeat("a", 40), strings.Repeat("b", 40), strings.Repeat("c", 40)}

	got := tc.FitPassages(passages, 15)
	require.Len(t, got, 2)
	assert.Equal(t, passages[0], got[0])
	assert.Equal(t, strings.Repeat("b", 20), got[1])

	assert.Len(t, tc.FitPassages(passages, 1000), 3)
	assert.Empty(t, tc.FitPassages(passages, 0))
}

func TestNewTokenCounter_AlwaysUsable(t *testing.T) {
	// Encodings may be unavailable offline; the counter must still work.
	tc, _ := NewTokenCounter("gpt-4o")
	require.NotNil(t, tc)
	assert.Positive(t, tc.Count("hello world"))
	assert.Greater(t, tc.CountMessages([]rag.Message{{Role: rag.RoleUser, Content: "hi"}}), 3)
}

func TestLastTurns(t *testing.T) {
	h := []rag.Message{{Content: "1"}, {Content: "2"}, {Content: "3"}}
	assert.Equal(t, h[1:], LastTurns(h, 2))
	assert.Equal(t, h, LastTurns(h, 6))
	assert.Nil(t, LastTurns(h, 0))
}
