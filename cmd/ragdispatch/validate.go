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
)

// ValidateCmd checks a configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate command")
	}

	cfg, loader, err := loadConfig(context.Background(), cli.Config)
	if err != nil {
		return err
	}
	defer loader.Close()

	fmt.Printf("Configuration is valid: %s\n", cli.Config)
	fmt.Printf("  Vector store: %s\n", cfg.Vector.Type)
	fmt.Printf("  Embedder:     %s (%s)\n", cfg.Embedder.Provider, cfg.Embedder.Model)
	if cfg.LLM != nil {
		fmt.Printf("  LLM:          %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	} else {
		fmt.Printf("  LLM:          none (citation answers)\n")
	}
	fmt.Printf("  Agents:       %d\n", len(cfg.Agents))
	return nil
}
