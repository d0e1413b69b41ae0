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

package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrEndpointUnresolved means no URL could be mined from an agent configuration.
	ErrEndpointUnresolved = errors.New("no endpoint configured")

	// ErrCollectionNotFound is reported by retrieval for unknown collection names.
	ErrCollectionNotFound = errors.New("collection not found")
)

// ValidationError is the only error returned to callers of the orchestrator.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// RetrievalError reports a failed context lookup.
type RetrievalError struct {
	Collection string
	Err        error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval from collection %q failed: %v", e.Collection, e.Err)
}

// Unwrap returns the underlying error.
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// TransportError reports a non-2xx status or an unparseable body.
type TransportError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	case e.Err != nil:
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("request to %s failed", e.URL)
	}
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ToolInvocationError is a protocol-level error reported by a remote tool.
type ToolInvocationError struct {
	Tool    string
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ToolInvocationError) Error() string {
	prefix := "tool call failed"
	if e.Tool != "" {
		prefix = fmt.Sprintf("tool %q failed", e.Tool)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d): %s", prefix, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
