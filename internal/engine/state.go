/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"vnengine/internal/attr"
)

// State is the resumable part of a session: where the cursor is and the scene
// the directives built so far. Script is the script path, relative to the
// engine root when it lies below it.
type State struct {
	Script     string         `json:"script"`
	Index      int            `json:"index"`
	Background string         `json:"background,omitempty"`
	Sprites    []Sprite       `json:"sprites"`
	Attributes map[string]any `json:"attributes"`
}

// Snapshot captures the current session state.
func (e *Engine) Snapshot() State {
	st := State{
		Index:      e.index,
		Background: e.background,
		Sprites:    e.sprites.list(),
		Attributes: e.attrs.Map(),
	}
	if e.script != nil {
		st.Script = e.relative(e.script.Name)
	}
	return st
}

func (e *Engine) relative(p string) string {
	if e.root == "" {
		return p
	}
	rel, err := filepath.Rel(e.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}

// Restore rebuilds a session from st. The script is parsed again from disk
// and the background decoded again, so a state can be restored by a process
// that never played the script.
func Restore(st State, opts Options) (*Engine, error) {
	if st.Script == "" {
		return nil, fmt.Errorf("restore: state has no script")
	}
	e := New(nil, opts)
	if err := e.Reset(st); err != nil {
		return nil, err
	}
	return e, nil
}

// Reset moves the engine to st in place, reusing its parsed scripts and
// decoded backgrounds. The engine is unchanged when st is invalid.
func (e *Engine) Reset(st State) error {
	if st.Script == "" {
		return fmt.Errorf("restore: state has no script")
	}
	s, err := e.scripts.Load(st.Script)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if st.Index < 0 || st.Index > s.Len() {
		return fmt.Errorf("restore: index %d outside %s (%d events)", st.Index, s.Name, s.Len())
	}
	attrs, err := attr.FromMap(st.Attributes)
	if err != nil {
		return fmt.Errorf("restore attributes: %w", err)
	}
	seen := make(map[string]bool, len(st.Sprites))
	for _, sp := range st.Sprites {
		if sp.Name == "" || seen[sp.Name] {
			return fmt.Errorf("restore: invalid or duplicate sprite %q", sp.Name)
		}
		seen[sp.Name] = true
	}
	if st.Background != "" {
		if _, ok := e.backgrounds[st.Background]; !ok {
			img, err := e.images.Load(st.Background)
			if err != nil {
				return fmt.Errorf("restore background: %w", err)
			}
			e.backgrounds[st.Background] = img
		}
	}

	e.script, e.index = s, st.Index
	e.attrs = attrs
	e.sprites.entries = append([]Sprite(nil), st.Sprites...)
	e.background = st.Background
	return nil
}
