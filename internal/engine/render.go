/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"vnengine/internal/frame"
	"vnengine/internal/rendercache"
	"vnengine/internal/script"
)

// ErrCacheDisabled is returned by RenderCached before EnableCache succeeded.
var ErrCacheDisabled = errors.New("render cache not enabled")

// Frame builds the renderable context of the current event. ok is false when
// the current event has no visible frame.
func (e *Engine) Frame() (f *frame.Frame, ok bool) {
	switch ev := e.Current().(type) {
	case *script.Dialogue:
		colors, errs := frame.ResolveColors(e.attrs, ev.Character)
		for _, err := range errs {
			e.log.Warn("ignoring color attribute", slog.String("character", ev.Character), slog.Any("err", err))
		}
		return &frame.Frame{
			Kind:            frame.KindDialogue,
			Background:      e.background,
			BackgroundImage: e.backgrounds[e.background],
			Sprites:         e.visibleSprites(),
			Character:       ev.Character,
			Text:            ev.Text(),
			Colors:          colors,
		}, true
	case *script.Jump:
		if !ev.Conditional() {
			return nil, false
		}
		return &frame.Frame{
			Kind:            frame.KindChoice,
			Background:      e.background,
			BackgroundImage: e.backgrounds[e.background],
			ChoiceA:         ev.Choices.A,
			ChoiceB:         ev.Choices.B,
		}, true
	}
	return nil, false
}

// visibleSprites resolves registry entries into drawable sprites. Paths are
// resolved against the engine root.
func (e *Engine) visibleSprites() []frame.Sprite {
	out := make([]frame.Sprite, 0, e.sprites.len())
	for _, s := range e.sprites.entries {
		out = append(out, frame.Sprite{
			Name:  s.Name,
			Path:  script.ResolvePath(e.root, s.Path),
			X:     s.X,
			Y:     s.Y,
			Scale: e.scale(s.Name),
		})
	}
	return out
}

func (e *Engine) scale(name string) float64 {
	f, ok, err := e.attrs.Float("sprite." + name + ".scale")
	switch {
	case err != nil:
		e.log.Warn("ignoring sprite scale", slog.String("sprite", name), slog.Any("err", err))
	case ok && f > 0:
		return f
	case ok:
		e.log.Warn("ignoring non-positive sprite scale", slog.String("sprite", name), slog.Float64("scale", f))
	}
	return 1
}

// Render draws the current frame through r and writes it to outPath as PNG
// without consulting the render cache. It reports false, writing nothing,
// when the current event is not renderable.
func (e *Engine) Render(r frame.Renderer, outPath string) (bool, error) {
	f, ok := e.Frame()
	if !ok {
		return false, nil
	}
	img, err := frame.Draw(r, f)
	if err != nil {
		return false, fmt.Errorf("render %s: %w", f.Kind, err)
	}
	if err := rendercache.WritePNG(outPath, img); err != nil {
		return false, err
	}
	return true, nil
}

// EnableCache indexes dir and routes RenderCached through it.
func (e *Engine) EnableCache(dir string) error {
	c, err := rendercache.Enable(dir)
	if err != nil {
		return err
	}
	e.cache = c
	return nil
}

// Cache returns the render cache, nil until EnableCache succeeded.
func (e *Engine) Cache() *rendercache.Cache { return e.cache }

// RenderCached is Render backed by the render cache. rendered is false when
// the current event is not renderable; hit reports whether r was skipped.
func (e *Engine) RenderCached(r frame.Renderer, outPath string) (rendered, hit bool, err error) {
	if e.cache == nil {
		return false, false, ErrCacheDisabled
	}
	f, ok := e.Frame()
	if !ok {
		return false, false, nil
	}
	hit, err = e.cache.RenderCached(f, r, outPath)
	if err != nil {
		return false, false, err
	}
	return true, hit, nil
}

// FrameName names the current frame after the script file and cursor,
// e.g. "intro_3.png".
func (e *Engine) FrameName() string {
	base := "script"
	if e.script != nil && e.script.Name != "" {
		base = filepath.Base(e.script.Name)
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return base + "_" + strconv.Itoa(e.index) + rendercache.ArtifactExt
}
