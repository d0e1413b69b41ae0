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

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kadirpekel/ragdispatch/pkg/endpoint"
)

// AgentsCmd lists agents with the endpoint each one resolves to.
type AgentsCmd struct{}

func (c *AgentsCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open agent store: %w", err)
	}
	defer store.Close()

	agents, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("No agents configured.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tENDPOINT\tFOUND IN\tAUTH")
	for _, a := range agents {
		ep := endpoint.Resolve(&a.AgentDescriptor)
		url, rule := ep.URL, string(ep.URLRule)
		if !ep.Found() {
			url, rule = "(unresolved)", "-"
		}
		auth := "-"
		if ep.Auth != "" {
			auth = string(ep.AuthRule)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Kind, url, rule, auth)
	}
	return w.Flush()
}
