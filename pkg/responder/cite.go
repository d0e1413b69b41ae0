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

package responder

import (
	"fmt"
	"math"
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/envelope"
)

// Cite answers by quoting the best passages. Items are expected in score
// order. With no context it returns guidance instead.
func Cite(in envelope.Input) string {
	if len(in.Context) == 0 {
		return guidance(in.Query)
	}

	n := min(len(in.Context), maxCitations)
	var b strings.Builder
	fmt.Fprintf(&b, "Here is what the knowledge base says about %q (%d relevant passage%s):\n", in.Query, len(in.Context), plural(len(in.Context)))
	for i, item := range in.Context[:n] {
		fmt.Fprintf(&b, "\n%d. [%d%% match, %s]\n", i+1, percent(item.Score), item.Source())
		fmt.Fprintf(&b, "   %s\n", excerpt(item.Content))
	}
	if len(in.Context) > n {
		fmt.Fprintf(&b, "\n%d more passage%s matched with lower scores.", len(in.Context)-n, plural(len(in.Context)-n))
	}
	return strings.TrimRight(b.String(), "\n")
}

func guidance(query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I could not find any passages relevant to %q.\n\n", query)
	b.WriteString("You can try:\n")
	b.WriteString("- Uploading documents that cover this topic to the collection.\n")
	b.WriteString("- Selecting a different collection.\n")
	b.WriteString("- Lowering the minimum similarity score so weaker matches are included.")
	return b.String()
}

func percent(score float64) int {
	return int(math.Round(math.Max(0, math.Min(1, score)) * 100))
}

func excerpt(content string) string {
	text := strings.Join(strings.Fields(content), " ")
	if text == "" {
		return "(no preview available)"
	}
	r := []rune(text)
	if len(r) <= excerptRunes {
		return text
	}
	return strings.TrimSpace(string(r[:excerptRunes])) + "..."
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
