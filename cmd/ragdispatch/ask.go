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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kadirpekel/ragdispatch/pkg/rag"
)

// AskCmd answers one question.
type AskCmd struct {
	Query      []string `arg:"" help:"The question."`
	Collection string   `help:"Collection to search (default: retrieval.default_collection)."`
	Agent      string   `help:"Id of a configured agent to route the question to."`
	TopK       int      `name:"top-k" help:"Number of passages to retrieve."`
	MinScore   *float64 `name:"min-score" help:"Minimum similarity score (0-1)."`
	JSON       bool     `help:"Print the full response as JSON."`
}

func (c *AskCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat, &cfg.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open agent store: %w", err)
	}
	defer store.Close()

	d, err := buildDispatcher(cfg, store, nil)
	if err != nil {
		return err
	}
	defer d.Close()

	resp, err := d.Answer(ctx, &rag.Request{
		Query:      strings.Join(c.Query, " "),
		Collection: c.Collection,
		TopK:       c.TopK,
		MinScore:   c.MinScore,
		AgentID:    c.Agent,
	})
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Response)
	fmt.Printf("\n-- %s, %d passage(s)\n", resp.AgentUsed, len(resp.Context))
	return nil
}
