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

package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrEmptyDocument is returned for a file with no content. Editors that
// truncate before writing briefly expose one; treating it as a valid but
// empty config would drop every agent.
var ErrEmptyDocument = errors.New("config document is empty")

// FileProvider reads a local YAML or JSON file.
type FileProvider struct {
	path string

	mu       sync.Mutex
	watchers []*fsnotify.Watcher
	closed   bool
}

func NewFileProvider(path string) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	return &FileProvider{path: abs}, nil
}

func (p *FileProvider) Type() Type { return TypeFile }

// Path is the absolute location of the file.
func (p *FileProvider) Path() string { return p.path }

func (p *FileProvider) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s: %w", p.path, ErrEmptyDocument)
	}
	return data, nil
}

// Watch observes the parent directory so that atomic replace-by-rename
// saves are seen. Only events for the file itself are forwarded.
func (p *FileProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("file provider closed")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(p.path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(p.path), err)
	}
	p.watchers = append(p.watchers, w)

	out := make(chan struct{}, 1)
	go p.forward(ctx, w, out)
	return out, nil
}

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

func (p *FileProvider) forward(ctx context.Context, w *fsnotify.Watcher, out chan<- struct{}) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == p.path && ev.Op&relevantOps != 0 {
				slog.Debug("Config file event", "op", ev.Op.String())
				notify(out)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Warn("Config file watcher error", "path", p.path, "error", err)
		}
	}
}

// Close stops all watchers started by Watch.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	for _, w := range p.watchers {
		errs = append(errs, w.Close())
	}
	p.watchers = nil
	return errors.Join(errs...)
}

var _ Provider = (*FileProvider)(nil)
