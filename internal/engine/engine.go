/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engine plays a parsed script back one event at a time. It owns the
// playback cursor and the scene state the directives mutate: the attribute
// store, the sprite registry and the current background.
package engine

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"vnengine/internal/assets"
	"vnengine/internal/attr"
	applog "vnengine/internal/log"
	"vnengine/internal/rendercache"
	"vnengine/internal/script"
)

// ErrSkipLimit is returned by NextUntil when Options.MaxSkip steps passed
// without reaching a matching event.
var ErrSkipLimit = errors.New("skip limit reached")

// StepError reports a failed Next. The cursor is left on the event that failed.
type StepError struct {
	Script string
	Index  int
	Event  script.Event
	Err    error
}

func (e *StepError) Error() string {
	what := "event"
	line := 0
	if e.Event != nil {
		what = e.Event.Kind().String()
		line = e.Event.SourceLine()
	}
	return fmt.Sprintf("%s:%d: %s at index %d: %v", e.Script, line, what, e.Index, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Options configure an Engine. The zero value plays scripts relative to the
// working directory and decodes images with an assets.Loader.
type Options struct {
	// Root is the directory jump targets and asset paths are resolved against.
	Root string
	// Images decodes backgrounds. Defaults to assets.NewLoader(Root).
	Images assets.ImageLoader
	// Scripts parses jump targets given their resolved path. Defaults to
	// script.FileLoader. Results are shared through the engine's script cache.
	Scripts script.Loader
	// MaxSkip bounds NextUntil; 0 means unbounded.
	MaxSkip int
	Logger  *slog.Logger
}

// Engine is a single playback session. It is not safe for concurrent use.
type Engine struct {
	script *script.Script
	index  int

	attrs      *attr.Tree
	sprites    registry
	background string

	root        string
	images      assets.ImageLoader
	backgrounds map[string]image.Image
	scripts     *scriptCache
	cache       *rendercache.Cache
	maxSkip     int
	log         *slog.Logger
}

// New starts playback of s at its first event.
func New(s *script.Script, opts Options) *Engine {
	e := &Engine{
		script:      s,
		attrs:       attr.New(),
		root:        opts.Root,
		images:      opts.Images,
		backgrounds: map[string]image.Image{},
		maxSkip:     opts.MaxSkip,
		log:         opts.Logger,
	}
	if e.images == nil {
		e.images = assets.NewLoader(opts.Root)
	}
	if e.log == nil {
		e.log = applog.WithComponent("engine")
	}
	e.scripts = newScriptCache(opts.Root, opts.Scripts)
	e.sprites.priority = e.priority
	return e
}

// FromSource parses text and starts playback of it.
func FromSource(text, name string, opts Options) (*Engine, error) {
	s, err := script.Parse(text, name)
	if err != nil {
		return nil, err
	}
	return New(s, opts), nil
}

// FromFile loads the script at path through the engine's script cache, so a
// later jump back to the entry script reuses the parsed copy.
func FromFile(path string, opts Options) (*Engine, error) {
	e := New(nil, opts)
	s, err := e.scripts.Load(path)
	if err != nil {
		return nil, err
	}
	e.script = s
	return e, nil
}

// Current returns the event at the cursor, or nil once playback ended.
func (e *Engine) Current() script.Event {
	if e.script == nil {
		return nil
	}
	return e.script.At(e.index)
}

// Done reports whether the cursor reached the end of the current script.
func (e *Engine) Done() bool { return e.Current() == nil }

// Script returns the script being played.
func (e *Engine) Script() *script.Script { return e.script }

// Index returns the cursor position within Script().
func (e *Engine) Index() int { return e.index }

// Attributes exposes the attribute store.
func (e *Engine) Attributes() *attr.Tree { return e.attrs }

// Background returns the path of the current background, "" for none.
func (e *Engine) Background() string { return e.background }

// Sprites returns a copy of the active sprites in drawing order.
func (e *Engine) Sprites() []Sprite { return e.sprites.list() }

// Root returns the directory relative paths are resolved against.
func (e *Engine) Root() string { return e.root }

// Next applies the event at the cursor and advances past it, returning the
// new current event. choice selects the branch of a conditional jump and is
// ignored otherwise. On error nothing about the cursor changes, so calling
// Next again retries the same event.
func (e *Engine) Next(choice bool) (script.Event, error) {
	ev := e.Current()
	if ev == nil {
		return nil, nil
	}
	if err := e.apply(ev, choice); err != nil {
		return nil, &StepError{Script: e.script.Name, Index: e.index, Event: ev, Err: err}
	}
	return e.Current(), nil
}

func (e *Engine) apply(ev script.Event, choice bool) error {
	switch ev := ev.(type) {
	case *script.Dialogue:
		e.index++
	case *script.Jump:
		if ev.Conditional() && !choice {
			e.log.Debug("branch declined", slog.String("target", ev.Target.Path))
			e.index++
			return nil
		}
		s, err := ev.Target.Resolve(e.scripts)
		if err != nil {
			return err
		}
		e.log.Debug("jump", slog.String("from", e.script.Name), slog.String("to", s.Name))
		e.script, e.index = s, 0
	case *script.Sprite:
		if ev.Visible {
			e.sprites.show(Sprite{Name: ev.Name, Path: ev.Path, X: ev.X, Y: ev.Y})
		} else {
			e.sprites.hide(ev.Name)
		}
		e.log.Debug("sprite", slog.String("name", ev.Name), slog.Bool("visible", ev.Visible), slog.Int("active", e.sprites.len()))
		e.index++
	case *script.LoadBackground:
		if _, ok := e.backgrounds[ev.Path]; !ok {
			img, err := e.images.Load(ev.Path)
			if err != nil {
				return err
			}
			e.backgrounds[ev.Path] = img
		}
		e.background = ev.Path
		e.log.Debug("background", slog.String("path", ev.Path))
		e.index++
	case *script.SetAttribute:
		if err := e.attrs.Set(ev.Path, ev.Key, ev.Value); err != nil {
			return err
		}
		if isPriority(ev) {
			e.sprites.resort()
		}
		e.log.Debug("attr", slog.String("path", ev.FullPath()), slog.String("value", ev.Value))
		e.index++
	case *script.Custom:
		e.log.Debug("custom directive skipped", slog.String("name", ev.Name))
		e.index++
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
	return nil
}

// isPriority matches writes to sprite.<name>.priority.
func isPriority(a *script.SetAttribute) bool {
	if a.Key != "priority" {
		return false
	}
	name, ok := strings.CutPrefix(a.Path, "sprite.")
	return ok && name != "" && !strings.Contains(name, ".")
}

// NextUntil steps with Next(false) while the current event does not satisfy
// match, returning the first event that does, or nil at the end of playback.
// Side effects of every skipped event are applied.
func (e *Engine) NextUntil(match func(script.Event) bool) (script.Event, error) {
	steps := 0
	for {
		ev := e.Current()
		if ev == nil || match(ev) {
			return ev, nil
		}
		if e.maxSkip > 0 && steps >= e.maxSkip {
			return ev, fmt.Errorf("%w after %d events in %s", ErrSkipLimit, steps, e.script.Name)
		}
		if _, err := e.Next(false); err != nil {
			return nil, err
		}
		steps++
	}
}

// NextUntilRenderable skips to the next dialogue or conditional jump.
func (e *Engine) NextUntilRenderable() (script.Event, error) {
	return e.NextUntil(script.Renderable)
}
