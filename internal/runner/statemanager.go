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

package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// stateBackend persists and retrieves the raw snapshot bytes. StateManager
// owns marshaling, locking and rate limiting; a backend only knows how to
// get bytes in and out of durable storage.
type stateBackend interface {
	save(data []byte) error
	load() ([]byte, bool, error)
}

// closableBackend is implemented by backends holding an open resource
// (a database connection) that must be released when the StateManager
// is no longer needed.
type closableBackend interface {
	Close() error
}

// StateManager is the durable checkpoint for one run: RunnerState plus
// its execution log and user-input journal. Writes are serialized
// through the Runner's own goroutine; StateManager itself adds a mutex
// only to guard concurrent reads from outside the loop (e.g. a
// status-reporting HTTP handler). The storage backend is pluggable: the
// default is a single JSON file, written atomically; NewSQLiteStateManager
// swaps in a SQLite-backed one for callers that want many runs' snapshots
// queryable from one file.
type StateManager struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
	backend stateBackend
}

// StateManagerOption configures a StateManager at construction.
type StateManagerOption func(*StateManager)

// WithSaveRateLimit caps SaveState to at most n writes per second
// (burst n), so a tight main-loop iteration cannot thrash disk. Calls
// in excess of the limit block in SaveState rather than being dropped,
// so every transition still gets a durable save eventually.
func WithSaveRateLimit(n rate.Limit, burst int) StateManagerOption {
	return func(s *StateManager) { s.limiter = rate.NewLimiter(n, burst) }
}

// NewStateManager creates a StateManager persisting to a single JSON file
// at path, written atomically via a temp-file-then-rename.
func NewStateManager(path string, opts ...StateManagerOption) *StateManager {
	s := &StateManager{backend: &fileBackend{path: path}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases any resource the StateManager's backend holds open. The
// file backend is a no-op; the SQLite backend closes its database handle.
func (s *StateManager) Close() error {
	if c, ok := s.backend.(closableBackend); ok {
		return c.Close()
	}
	return nil
}

// fileBackend is the default stateBackend: one JSON file per run, written
// atomically so a crash mid-write never leaves a partial file on disk.
type fileBackend struct {
	path string
}

func (b *fileBackend) save(data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmpPath := b.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming state file: %w", err)
	}
	return nil
}

func (b *fileBackend) load() ([]byte, bool, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading state file: %w", err)
	}
	return data, true, nil
}

// Snapshot is the serialized record written by SaveState.
type Snapshot struct {
	State           State               `json:"state"`
	CurrentStep     string              `json:"current_step"`
	CurrentProvider string              `json:"current_provider"`
	UserInput       map[string]string   `json:"user_input"`
	ExecutionLog    []ExecutionLogEntry `json:"execution_log"`
	LastUpdated     time.Time           `json:"last_updated"`
}

// SaveState atomically persists snapshot. The file backend writes to a
// temp file in the same directory, then renames it over the target, so
// a crash mid-write leaves either the previous snapshot or the new one
// intact, never a partial file; the sqlite backend upserts the
// snapshot row.
func (s *StateManager) SaveState(snapshot Snapshot) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(context.Background()); err != nil {
			return fmt.Errorf("waiting for save rate limiter: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state snapshot: %w", err)
	}

	return s.backend.save(data)
}

// LoadState returns the most recent snapshot, or ok=false if none has
// ever been saved.
func (s *StateManager) LoadState() (Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok, err := s.backend.load()
	if err != nil || !ok {
		return Snapshot{}, ok, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("parsing state file: %w", err)
	}
	return snap, true, nil
}

// HasState reports whether a snapshot has ever been saved.
func (s *StateManager) HasState() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok, err := s.backend.load()
	return err == nil && ok
}

// AddUserInput durably records a single answered key/value pair as its
// own checkpoint: load the current snapshot, set key, save
// immediately. This is independent of the Runner's next whole-Snapshot
// SaveState call, so a crash between a feedback exchange and the next
// full checkpoint never loses the answer.
func (s *StateManager) AddUserInput(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateLocked(func(snap *Snapshot) {
		if snap.UserInput == nil {
			snap.UserInput = make(map[string]string)
		}
		snap.UserInput[key] = value
	})
}

// AddExecutionLog durably appends one execution-log entry as its own
// checkpoint, for the same reason AddUserInput does: the Runner's
// in-memory log only reaches disk on the next full SaveState, and a
// crash in between would otherwise lose the entry.
func (s *StateManager) AddExecutionLog(entry ExecutionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateLocked(func(snap *Snapshot) {
		snap.ExecutionLog = append(snap.ExecutionLog, entry)
	})
}

// mutateLocked loads the current snapshot (zero value if none has ever
// been saved), applies mutate, stamps LastUpdated, and saves the
// result. Callers must hold s.mu.
func (s *StateManager) mutateLocked(mutate func(*Snapshot)) error {
	var snap Snapshot
	data, ok, err := s.backend.load()
	if err != nil {
		return fmt.Errorf("loading state snapshot: %w", err)
	}
	if ok {
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("parsing state file: %w", err)
		}
	}

	mutate(&snap)
	snap.LastUpdated = time.Now()

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state snapshot: %w", err)
	}
	return s.backend.save(out)
}

// maxBacktraceFrames bounds how much of the call stack an error log
// entry records.
const maxBacktraceFrames = 5

// captureBacktrace returns up to maxBacktraceFrames caller frames,
// skipping this function and its immediate caller.
func captureBacktrace() []string {
	pcs := make([]uintptr, maxBacktraceFrames)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var out []string
	for {
		frame, more := frames.Next()
		out = append(out, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}
	return out
}

// LogEntry builds an ExecutionLogEntry for level/message, attaching a
// backtrace when level is "error" and debug is enabled.
func LogEntry(level, message string, debug bool) ExecutionLogEntry {
	entry := ExecutionLogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	}
	if level == "error" && debug {
		entry.Backtrace = captureBacktrace()
	}
	return entry
}
