// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent is published to a Watcher's channel whenever the config
// file is rewritten. On a successful reload Config holds the reparsed
// config; on a failed reload Err is set and Config is nil.
type ChangeEvent struct {
	Config *Config
	Err    error
}

// Watcher watches a config file on disk and republishes parsed Config
// values as they change, debounced to collapse editor save-and-rewrite
// bursts into a single reload.
type Watcher struct {
	fsWatcher     *fsnotify.Watcher
	path          string
	logger        *slog.Logger
	debounceDelay time.Duration
	changes       chan ChangeEvent

	mu      sync.Mutex
	pending *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WatchConfig starts watching path for changes. Callers must call
// Close to release the underlying fsnotify handle and stop the
// internal goroutine.
func WatchConfig(path string, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(path); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		fsWatcher:     fsWatcher,
		path:          path,
		logger:        logger,
		debounceDelay: 200 * time.Millisecond,
		changes:       make(chan ChangeEvent, 1),
		ctx:           ctx,
		cancel:        cancel,
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Changes returns the channel new Config values are published on.
func (w *Watcher) Changes() <-chan ChangeEvent { return w.changes }

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.scheduleReload()
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceDelay, w.reload)
	w.mu.Unlock()
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	event := ChangeEvent{Config: cfg, Err: err}
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config", "path", w.path, "error", err)
	} else {
		w.logger.Info("config reloaded", "path", w.path)
	}
	select {
	case w.changes <- event:
	default:
		// Drop if nobody has drained the previous event; the next
		// write will schedule another reload anyway.
	}
}

// Close stops the watcher and releases its fsnotify handle.
func (w *Watcher) Close() error {
	w.cancel()
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	w.wg.Wait()
	return w.fsWatcher.Close()
}
