/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history keeps the states a reader passed through so playback can
// step back and forth. States are stored as JSON and bounded by count and
// total size; the oldest entries go first.
package history

import (
	"encoding/json"
	"sync"

	"vnengine/internal/engine"
)

// Entry is one remembered position.
type Entry struct {
	Frame int
	Blob  []byte
}

type Config struct {
	MaxEntries int // 0 means unbounded
	MaxBytes   int
}

// Manager holds a back stack and a forward stack. Pushing a new state
// discards the forward stack.
type Manager struct {
	cfg        Config
	mu         sync.Mutex
	back       []Entry
	forward    []Entry
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 * 1024 * 1024 // 4 MiB
	}
	return &Manager{cfg: cfg}
}

// Push records st as the position of frame.
func (m *Manager) Push(frame int, st engine.State) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.back = append(m.back, Entry{Frame: frame, Blob: blob})
	m.totalBytes += len(blob)
	for _, e := range m.forward {
		m.totalBytes -= len(e.Blob)
	}
	m.forward = nil
	m.enforceCapsLocked()
	return nil
}

// Back moves the newest entry onto the forward stack and returns the entry
// now on top, the position before it. ok is false when there is nothing to
// go back to.
func (m *Manager) Back() (frame int, st engine.State, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.back) < 2 {
		return 0, st, false, nil
	}
	cur := m.back[len(m.back)-1]
	m.back = m.back[:len(m.back)-1]
	m.forward = append(m.forward, cur)
	top := m.back[len(m.back)-1]
	st, err = decode(top.Blob)
	return top.Frame, st, err == nil, err
}

// Peek returns the newest entry without moving it.
func (m *Manager) Peek() (frame int, st engine.State, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.back) == 0 {
		return 0, st, false, nil
	}
	top := m.back[len(m.back)-1]
	st, err = decode(top.Blob)
	return top.Frame, st, err == nil, err
}

// Forward undoes a Back.
func (m *Manager) Forward() (frame int, st engine.State, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.forward) == 0 {
		return 0, st, false, nil
	}
	e := m.forward[len(m.forward)-1]
	m.forward = m.forward[:len(m.forward)-1]
	m.back = append(m.back, e)
	st, err = decode(e.Blob)
	return e.Frame, st, err == nil, err
}

// Clear drops everything.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.back, m.forward, m.totalBytes = nil, nil, 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes, back, forward int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes, len(m.back), len(m.forward)
}

func decode(blob []byte) (engine.State, error) {
	var st engine.State
	err := json.Unmarshal(blob, &st)
	return st, err
}

func (m *Manager) enforceCapsLocked() {
	drop := 0
	if m.cfg.MaxEntries > 0 && len(m.back) > m.cfg.MaxEntries {
		drop = len(m.back) - m.cfg.MaxEntries
	}
	size := m.totalBytes
	for _, e := range m.back[:drop] {
		size -= len(e.Blob)
	}
	// keep at least the current position
	for drop < len(m.back)-1 && size > m.cfg.MaxBytes {
		size -= len(m.back[drop].Blob)
		drop++
	}
	if drop == 0 {
		return
	}
	m.totalBytes = size
	m.back = append([]Entry(nil), m.back[drop:]...)
}
