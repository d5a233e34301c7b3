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
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteBackend stores one run's snapshot as a row keyed by runID, so many
// runs can share a single database file instead of one JSON file each.
type sqliteBackend struct {
	db    *sql.DB
	runID string
}

// NewSQLiteStateManager opens (creating if necessary) a SQLite database at
// dbPath and returns a StateManager that persists runID's snapshots there.
// SQLite serializes writes, so the connection pool is capped to one
// connection, matching how a single-node backend should talk to it.
func NewSQLiteStateManager(dbPath, runID string, opts ...StateManagerOption) (*StateManager, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to state database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %s: %w", pragma, err)
		}
	}

	const createTable = `CREATE TABLE IF NOT EXISTS run_snapshots (
		run_id TEXT PRIMARY KEY,
		snapshot TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating run_snapshots table: %w", err)
	}

	s := &StateManager{backend: &sqliteBackend{db: db, runID: runID}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (b *sqliteBackend) save(data []byte) error {
	const upsert = `
		INSERT INTO run_snapshots (run_id, snapshot, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`
	_, err := b.db.Exec(upsert, b.runID, string(data), time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving snapshot for run %s: %w", b.runID, err)
	}
	return nil
}

func (b *sqliteBackend) load() ([]byte, bool, error) {
	var snapshot string
	err := b.db.QueryRow(`SELECT snapshot FROM run_snapshots WHERE run_id = ?`, b.runID).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading snapshot for run %s: %w", b.runID, err)
	}
	return []byte(snapshot), true, nil
}

// Close closes the underlying database connection.
func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
