/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package player drives an Engine frame by frame: it skips to the next
// renderable event, writes it as render_N.png and waits for the reader's
// choice before stepping on.
package player

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"vnengine/internal/engine"
	"vnengine/internal/frame"
	"vnengine/internal/history"
	applog "vnengine/internal/log"
	"vnengine/internal/script"
)

// Step describes the frame the player stopped at.
type Step struct {
	N       int             `json:"n"`
	Kind    string          `json:"kind,omitempty"`
	Script  string          `json:"script,omitempty"`
	Index   int             `json:"index"`
	Path    string          `json:"-"`
	Hit     bool            `json:"cached"`
	Choices *script.Choices `json:"choices,omitempty"`
	Done    bool            `json:"done"`
}

// Player is not safe for concurrent use.
type Player struct {
	e    *engine.Engine
	r    frame.Renderer
	dir  string
	n    int
	last Step
	hist *history.Manager
	log  *slog.Logger
}

// New returns a player writing frames into dir. Frames go through the
// engine's render cache when one is enabled.
func New(e *engine.Engine, r frame.Renderer, dir string) *Player {
	return &Player{
		e:    e,
		r:    r,
		dir:  dir,
		hist: history.NewManager(history.Config{MaxEntries: 500}),
		log:  applog.WithComponent("player"),
	}
}

func (p *Player) Engine() *engine.Engine { return p.e }

// Last returns the most recent step.
func (p *Player) Last() Step { return p.last }

// Start renders the first frame at or after the cursor.
func (p *Player) Start() (Step, error) { return p.show() }

// Advance leaves the current frame with choice and renders the next one.
// choice only matters on choice frames.
func (p *Player) Advance(choice bool) (Step, error) {
	if p.e.Done() {
		return p.done(), nil
	}
	if _, err := p.e.Next(choice); err != nil {
		return p.last, err
	}
	return p.show()
}

// Back returns to the frame before the current one, rendering it again
// under its original number. After the end of playback it returns to the
// last frame. ok is false at the first frame.
func (p *Player) Back() (Step, bool, error) {
	rewind := p.hist.Back
	if p.last.Done {
		rewind = p.hist.Peek
	}
	return p.jump(rewind)
}

// Forward undoes Back as long as no new frame was played since.
func (p *Player) Forward() (Step, bool, error) { return p.jump(p.hist.Forward) }

func (p *Player) jump(move func() (int, engine.State, bool, error)) (Step, bool, error) {
	n, state, ok, err := move()
	if err != nil || !ok {
		return p.last, false, err
	}
	if err := p.e.Reset(state); err != nil {
		return p.last, false, err
	}
	st, err := p.draw(p.e.Current(), n)
	if err != nil {
		return p.last, false, err
	}
	p.n = n + 1
	p.last = st
	return st, true, nil
}

func (p *Player) show() (Step, error) {
	ev, err := p.e.NextUntilRenderable()
	if err != nil {
		return p.last, err
	}
	if ev == nil {
		return p.done(), nil
	}
	st, err := p.draw(ev, p.n)
	if err != nil {
		return p.last, err
	}
	p.n++
	p.last = st
	if err := p.hist.Push(st.N, p.e.Snapshot()); err != nil {
		p.log.Warn("history push failed", slog.Any("err", err))
	}
	return st, nil
}

// draw renders ev, the current event, as frame n.
func (p *Player) draw(ev script.Event, n int) (Step, error) {
	if ev == nil {
		return Step{}, errors.New("no current event")
	}
	st := Step{
		N:      n,
		Kind:   ev.Kind().String(),
		Script: p.e.Script().Name,
		Index:  p.e.Index(),
		Path:   filepath.Join(p.dir, fmt.Sprintf("render_%d.png", n)),
	}
	if j, ok := ev.(*script.Jump); ok {
		st.Choices = j.Choices
	}
	var (
		rendered bool
		err      error
	)
	if p.e.Cache() != nil {
		rendered, st.Hit, err = p.e.RenderCached(p.r, st.Path)
	} else {
		rendered, err = p.e.Render(p.r, st.Path)
	}
	if err != nil {
		return Step{}, err
	}
	if !rendered {
		return Step{}, errors.New("renderable event produced no frame")
	}
	p.log.Debug("frame", slog.String("path", st.Path), slog.String("kind", st.Kind), slog.Bool("cached", st.Hit))
	return st, nil
}

func (p *Player) done() Step {
	p.last = Step{N: p.n, Index: p.e.Index(), Done: true}
	return p.last
}
