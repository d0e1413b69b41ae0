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
	"fmt"
	"os"

	"github.com/kadirpekel/ragdispatch/pkg/config"
	"github.com/kadirpekel/ragdispatch/pkg/logger"
)

const (
	LogFileEnvVar   = "LOG_FILE"
	LogLevelEnvVar  = "LOG_LEVEL"
	LogFormatEnvVar = "LOG_FORMAT"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "simple"
)

// pick returns the first non-empty value.
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// initLogger resolves each setting as flag > env > config > default and
// installs the default logger. The returned cleanup is never nil.
func initLogger(flagLevel, flagFile, flagFormat string, cfg *config.LoggerConfig) (func(), error) {
	var cfgLevel, cfgFile, cfgFormat string
	if cfg != nil {
		cfgLevel, cfgFile, cfgFormat = cfg.Level, cfg.File, cfg.Format
	}

	levelName := pick(flagLevel, os.Getenv(LogLevelEnvVar), cfgLevel, DefaultLogLevel)
	file := pick(flagFile, os.Getenv(LogFileEnvVar), cfgFile)
	format := pick(flagFormat, os.Getenv(LogFormatEnvVar), cfgFormat, DefaultLogFormat)

	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return func() {}, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	cleanup := func() {}
	if file != "" {
		f, closeFn, err := logger.OpenLogFile(file)
		if err != nil {
			return func() {}, fmt.Errorf("failed to open log file: %w", err)
		}
		output, cleanup = f, closeFn
	}

	logger.Init(level, output, format)
	return cleanup, nil
}
