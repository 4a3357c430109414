/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"vnengine/internal/engine"
	"vnengine/internal/player"
	"vnengine/internal/rendercache"
	"vnengine/internal/storage"
)

// chooser decides the branch at a choice frame. ok=false stops playback.
type chooser func(st player.Step) (choice, ok bool)

func (a *app) play(args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	slot := fs.String("slot", "", "resume from and save to this slot")
	if err := fs.Parse(args); err != nil {
		return usageError("play: " + err.Error())
	}
	if fs.NArg() != 1 {
		return usageError("play requires <entry.vn>")
	}
	in := bufio.NewScanner(a.in)
	return a.session(fs.Arg(0), *slot, func(st player.Step) (bool, bool) {
		return a.prompt(in, st)
	})
}

func (a *app) renderAll(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	list := fs.String("choices", "", "comma separated 1/2 answers for choice frames; 2 once exhausted")
	if err := fs.Parse(args); err != nil {
		return usageError("render: " + err.Error())
	}
	if fs.NArg() != 1 {
		return usageError("render requires <entry.vn>")
	}
	answers, err := parseChoices(*list)
	if err != nil {
		return usageError(err.Error())
	}
	return a.session(fs.Arg(0), "", func(player.Step) (bool, bool) {
		if len(answers) == 0 {
			return false, true
		}
		c := answers[0]
		answers = answers[1:]
		return c, true
	})
}

func parseChoices(s string) ([]bool, error) {
	var out []bool
	for _, f := range strings.Split(s, ",") {
		switch strings.TrimSpace(f) {
		case "":
		case "1":
			out = append(out, true)
		case "2":
			out = append(out, false)
		default:
			return nil, fmt.Errorf("choice %q must be 1 or 2", f)
		}
	}
	return out, nil
}

// session plays entry to the end, rendering every frame into the frames
// directory. With a slot it resumes from a stored save and writes the
// position back when playback stops.
func (a *app) session(entry, slot string, choose chooser) error {
	ctx := context.Background()
	root, rel, err := a.locate(entry)
	if err != nil {
		return err
	}
	var store *storage.Store
	if slot != "" {
		if store, err = storage.Open(ctx, a.cfg.StoreDSN()); err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}
	e, err := a.openEngine(ctx, store, slot, root, rel)
	if err != nil {
		return err
	}
	if a.cfg.Paths.Cache != "" {
		if err := e.EnableCache(cachePath(root, a.cfg.Paths.Cache)); err != nil {
			return err
		}
	}
	scene, err := a.newScene(root)
	if err != nil {
		return err
	}
	frames := a.cfg.Paths.Frames
	if err := clearFrames(frames); err != nil {
		return err
	}

	a.sess.Script = entry
	a.sess.Index = e.Index
	a.sess.Autosave = func() (string, error) { return autosave(frames, e) }

	p := player.New(e, scene, frames)
	st, err := p.Start()
	hits := 0
	for err == nil && !st.Done {
		if st.Hit {
			hits++
		}
		choice := false
		if st.Choices != nil {
			var ok bool
			if choice, ok = choose(st); !ok {
				break
			}
		} else {
			_, _ = fmt.Fprintf(a.out, "[!] %s\n", st.Path)
		}
		st, err = p.Advance(choice)
	}
	if store != nil {
		if _, serr := store.Put(ctx, slot, e.Snapshot()); serr != nil {
			err = errors.Join(err, serr)
		} else {
			_, _ = fmt.Fprintf(a.out, "[!] saved to slot %q\n", slot)
		}
	}
	if err != nil {
		return err
	}
	a.log.Info("playback finished", slog.Int("frames", p.Last().N), slog.Int("cache_hits", hits))
	a.tel.Event("playback_finished", map[string]any{"frames": p.Last().N, "cache_hits": hits})
	_, _ = fmt.Fprintf(a.out, "[!] rendered %d frames (%d from cache) into %s\n", p.Last().N, hits, frames)
	return a.pruneCache(e.Cache())
}

func (a *app) openEngine(ctx context.Context, store *storage.Store, slot, root, rel string) (*engine.Engine, error) {
	opts := a.engineOptions(root)
	if store != nil {
		sv, err := store.Get(ctx, slot)
		switch {
		case err == nil:
			a.log.Info("resuming", slog.String("slot", slot), slog.String("script", sv.State.Script), slog.Int("index", sv.State.Index))
			return engine.Restore(sv.State, opts)
		case !errors.Is(err, storage.ErrNoSave):
			return nil, err
		}
	}
	return engine.FromFile(rel, opts)
}

func (a *app) pruneCache(c *rendercache.Cache) error {
	limit, err := a.cacheLimit()
	if err != nil || c == nil || limit == 0 {
		return err
	}
	_, err = c.Prune(int64(limit))
	return err
}

func cachePath(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// clearFrames removes the render_N.png files of a previous run.
func clearFrames(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	old, err := filepath.Glob(filepath.Join(dir, "render_*.png"))
	if err != nil {
		return err
	}
	for _, f := range old {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}

func autosave(dir string, e *engine.Engine) (string, error) {
	path := filepath.Join(dir, "autosave.json")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	return path, storage.Export(f, storage.Save{Slot: "autosave", State: e.Snapshot()})
}

// prompt asks for 1 or 2 until it gets one. "q" or end of input stops.
func (a *app) prompt(in *bufio.Scanner, st player.Step) (bool, bool) {
	w := max(len(st.Choices.A), len(st.Choices.B)) + 6
	bar := "+" + strings.Repeat("-", w) + "+"
	for {
		_, _ = fmt.Fprintf(a.out, "%s\n| [1] %-*s|\n| [2] %-*s|\n%s\n(1 or 2, q to quit) > ",
			bar, w-5, st.Choices.A, w-5, st.Choices.B, bar)
		if !in.Scan() {
			_, _ = fmt.Fprintln(a.out)
			return false, false
		}
		switch strings.TrimSpace(in.Text()) {
		case "1":
			return true, true
		case "2":
			return false, true
		case "q", "quit":
			return false, false
		default:
			_, _ = fmt.Fprintln(a.out, "[!!] The choice must be either 1 or 2.")
		}
	}
}
