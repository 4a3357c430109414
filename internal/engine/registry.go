/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"log/slog"
	"sort"
)

// Sprite is an active sprite as the registry holds it.
type Sprite struct {
	Name string `json:"name"`
	Path string `json:"path"`
	X    uint32 `json:"x"`
	Y    uint32 `json:"y"`
}

// registry keeps active sprites unique by name and ordered by descending
// priority. A newly shown sprite goes in front of the first entry whose
// priority is not greater than its own.
type registry struct {
	entries  []Sprite
	priority func(name string) int
}

func (r *registry) len() int { return len(r.entries) }

func (r *registry) list() []Sprite {
	out := make([]Sprite, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *registry) find(name string) int {
	for i, s := range r.entries {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func (r *registry) show(s Sprite) {
	if i := r.find(s.Name); i >= 0 {
		r.entries[i] = s
		return
	}
	p := r.priority(s.Name)
	at := len(r.entries)
	for i, cur := range r.entries {
		if r.priority(cur.Name) <= p {
			at = i
			break
		}
	}
	r.entries = append(r.entries, Sprite{})
	copy(r.entries[at+1:], r.entries[at:])
	r.entries[at] = s
}

func (r *registry) hide(name string) {
	if i := r.find(name); i >= 0 {
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
	}
}

func (r *registry) resort() {
	prio := make(map[string]int, len(r.entries))
	for _, s := range r.entries {
		prio[s.Name] = r.priority(s.Name)
	}
	sort.SliceStable(r.entries, func(i, j int) bool {
		return prio[r.entries[i].Name] > prio[r.entries[j].Name]
	})
}

// priority reads sprite.<name>.priority, treating a missing or unparsable
// value as 0.
func (e *Engine) priority(name string) int {
	n, ok, err := e.attrs.Int("sprite." + name + ".priority")
	if err != nil {
		e.log.Warn("ignoring sprite priority", slog.String("sprite", name), slog.Any("err", err))
		return 0
	}
	if !ok {
		return 0
	}
	return n
}
