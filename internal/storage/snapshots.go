/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	applog "parsec/internal/log"
	"parsec/internal/scene"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(workspace, ts, blob, elements) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT ts, blob FROM snapshots WHERE workspace = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, elements FROM snapshots WHERE workspace = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE workspace = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE workspace = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// Entry describes one cached snapshot without its payload.
type Entry struct {
	At       time.Time
	Elements int
}

// SaveWorkspace stores snap as the newest snapshot of workspace.
func (c *Cache) SaveWorkspace(ctx context.Context, workspace string, snap scene.Snapshot, ts time.Time) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = c.db.ExecContext(ctx, insertSnapshotSQL, workspace, ts.UTC().Format(time.RFC3339Nano), blob, len(snap.Elements))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	applog.WithComponent("storage").Debug("snapshot cached",
		slog.String("workspace", workspace), slog.Int("elements", len(snap.Elements)))
	return nil
}

// LatestWorkspace returns the newest cached snapshot of workspace. ok is
// false when nothing is cached.
func (c *Cache) LatestWorkspace(ctx context.Context, workspace string) (snap scene.Snapshot, at time.Time, ok bool, err error) {
	var tsStr string
	var blob []byte
	err = c.db.QueryRowContext(ctx, selectLatestSnapshotSQL, workspace).Scan(&tsStr, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return scene.Snapshot{}, time.Time{}, false, nil
	}
	if err != nil {
		return scene.Snapshot{}, time.Time{}, false, err
	}
	if err := json.Unmarshal(blob, &snap); err != nil {
		return scene.Snapshot{}, time.Time{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	// a bad timestamp still yields the snapshot
	at, _ = time.Parse(time.RFC3339Nano, tsStr)
	return snap, at, true, nil
}

// ListWorkspaces returns up to limit entries for workspace, newest first.
func (c *Cache) ListWorkspaces(ctx context.Context, workspace string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := c.db.QueryContext(ctx, listSnapshotsSQL, workspace, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Entry
	for rows.Next() {
		var tsStr string
		var n int
		if err := rows.Scan(&tsStr, &n); err != nil {
			return nil, err
		}
		at, _ := time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, Entry{At: at, Elements: n})
	}
	return out, rows.Err()
}

// PruneWorkspaces keeps the keep most recent snapshots per workspace and
// deletes the rest, returning how many rows were removed.
func (c *Cache) PruneWorkspaces(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT workspace FROM snapshots`)
	if err != nil {
		return 0, err
	}
	var names []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			_ = rows.Close()
			return 0, err
		}
		names = append(names, w)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	var total int64
	for _, w := range names {
		res, err := c.db.ExecContext(ctx, pruneOldSnapshotsSQL, w, w, keep)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", w, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Autosave opens the cache at path, stores snap and closes it again. It
// serves callers that hold no open cache, such as crash recovery.
func Autosave(path, workspace string, snap scene.Snapshot) error {
	c, err := Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.SaveWorkspace(ctx, workspace, snap, time.Now())
}
