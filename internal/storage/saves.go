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
	"strings"
	"time"

	"github.com/google/uuid"

	"vnengine/internal/engine"
)

// ErrNoSave is returned when a slot holds no save.
var ErrNoSave = errors.New("no save in slot")

// Save is a stored session.
type Save struct {
	ID        string
	Slot      string
	State     engine.State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// tsLayout is fixed width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// language=SQL
const upsertSaveSQL = `INSERT INTO saves (id, slot, script, idx, state, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (slot) DO UPDATE SET script = excluded.script, idx = excluded.idx,
	state = excluded.state, updated_at = excluded.updated_at`

// language=SQL
const selectSaveSQL = `SELECT id, slot, state, created_at, updated_at FROM saves WHERE slot = ?`

// language=SQL
const listSavesSQL = `SELECT id, slot, state, created_at, updated_at FROM saves ORDER BY updated_at DESC, slot`

// language=SQL
const deleteSaveSQL = `DELETE FROM saves WHERE slot = ?`

// Put writes st into slot, replacing what the slot held. A slot keeps its ID
// and creation time across overwrites.
func (s *Store) Put(ctx context.Context, slot string, st engine.State) (Save, error) {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return Save{}, errors.New("slot name is required")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return Save{}, fmt.Errorf("encode state: %w", err)
	}
	now := time.Now().UTC()
	ts := now.Format(tsLayout)
	if _, err := s.exec(ctx, upsertSaveSQL, uuid.NewString(), slot, st.Script, st.Index, string(data), ts, ts); err != nil {
		return Save{}, fmt.Errorf("write slot %s: %w", slot, err)
	}
	s.log.Debug("saved", slog.String("slot", slot), slog.String("script", st.Script), slog.Int("index", st.Index))
	return s.Get(ctx, slot)
}

// Get reads the save in slot or returns ErrNoSave.
func (s *Store) Get(ctx context.Context, slot string) (Save, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectSaveSQL), slot)
	sv, err := scanSave(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Save{}, fmt.Errorf("%w %q", ErrNoSave, slot)
	}
	return sv, err
}

// List returns all saves, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Save, error) {
	rows, err := s.db.QueryContext(ctx, listSavesSQL)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Save
	for rows.Next() {
		sv, err := scanSave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// Delete removes slot. Deleting an empty slot returns ErrNoSave.
func (s *Store) Delete(ctx context.Context, slot string) error {
	res, err := s.exec(ctx, deleteSaveSQL, slot)
	if err != nil {
		return fmt.Errorf("delete slot %s: %w", slot, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w %q", ErrNoSave, slot)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSave(r scanner) (Save, error) {
	var (
		sv               Save
		state            string
		created, updated string
	)
	if err := r.Scan(&sv.ID, &sv.Slot, &state, &created, &updated); err != nil {
		return Save{}, err
	}
	if err := json.Unmarshal([]byte(state), &sv.State); err != nil {
		return Save{}, fmt.Errorf("decode slot %s: %w", sv.Slot, err)
	}
	sv.CreatedAt, _ = time.Parse(tsLayout, created)
	sv.UpdatedAt, _ = time.Parse(tsLayout, updated)
	return sv, nil
}
