/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vnengine/internal/config"
	"vnengine/internal/crash"
	applog "vnengine/internal/log"
)

func writeStory(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"main.vn":  "[A]\nhello\n@jump(Left, Right, left.vn)\n[A]\nright",
		"left.vn":  "[B]\nleft",
		"other.vn": "@jump(nowhere.vn)",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func testApp(t *testing.T, input string) (*app, *bytes.Buffer) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Paths.Frames = filepath.Join(t.TempDir(), "frames")
	cfg.Paths.Cache = filepath.Join(t.TempDir(), "cache")
	var out bytes.Buffer
	return &app{
		cfg:  cfg,
		sess: &crash.Session{},
		in:   strings.NewReader(input),
		out:  &out,
		log:  applog.WithComponent("cli"),
	}, &out
}

func countFrames(t *testing.T, dir string) int {
	t.Helper()
	m, err := filepath.Glob(filepath.Join(dir, "render_*.png"))
	if err != nil {
		t.Fatal(err)
	}
	return len(m)
}

func TestParseChoices(t *testing.T) {
	got, err := parseChoices("1, 2,1")
	if err != nil || len(got) != 3 || !got[0] || got[1] || !got[2] {
		t.Fatalf("got %v %v", got, err)
	}
	if got, err := parseChoices(""); err != nil || len(got) != 0 {
		t.Fatalf("empty: %v %v", got, err)
	}
	if _, err := parseChoices("3"); err == nil {
		t.Fatal("expected error for 3")
	}
}

func TestPlayPromptsUntilValidChoice(t *testing.T) {
	root := writeStory(t)
	a, out := testApp(t, "maybe\n1\n")
	if err := a.play([]string{filepath.Join(root, "main.vn")}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "must be either 1 or 2") {
		t.Fatalf("no reprompt in output:\n%s", out.String())
	}
	// hello, the choice, then left.vn's line
	if n := countFrames(t, a.cfg.Paths.Frames); n != 3 {
		t.Fatalf("frames = %d", n)
	}
	if a.sess.Autosave == nil || a.sess.Index == nil {
		t.Fatal("crash session not populated")
	}
}

func TestPlayQuitStops(t *testing.T) {
	root := writeStory(t)
	a, _ := testApp(t, "q\n")
	if err := a.play([]string{filepath.Join(root, "main.vn")}); err != nil {
		t.Fatal(err)
	}
	if n := countFrames(t, a.cfg.Paths.Frames); n != 2 {
		t.Fatalf("frames = %d", n)
	}
}

func TestRenderDeclinesByDefault(t *testing.T) {
	root := writeStory(t)
	a, out := testApp(t, "")
	if err := a.renderAll([]string{filepath.Join(root, "main.vn")}); err != nil {
		t.Fatal(err)
	}
	if n := countFrames(t, a.cfg.Paths.Frames); n != 3 {
		t.Fatalf("frames = %d", n)
	}
	if !strings.Contains(out.String(), "rendered 3 frames") {
		t.Fatalf("output:\n%s", out.String())
	}

	// a second run is served from the render cache
	out.Reset()
	if err := a.renderAll([]string{"-choices", "2", filepath.Join(root, "main.vn")}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "(3 from cache)") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestCheckReportsBrokenScripts(t *testing.T) {
	root := writeStory(t)
	a, out := testApp(t, "")
	if err := a.check([]string{filepath.Join(root, "main.vn")}); err != nil {
		t.Fatalf("check main: %v", err)
	}
	if !strings.Contains(out.String(), "ok   left.vn") {
		t.Fatalf("output:\n%s", out.String())
	}
	if err := a.check([]string{filepath.Join(root, "other.vn")}); err == nil {
		t.Fatal("expected failure for missing jump target")
	}
}

func TestRunUsageErrors(t *testing.T) {
	t.Setenv(config.EnvConfig, filepath.Join(t.TempDir(), "none.yaml"))
	if code := run([]string{"bogus"}); code != 2 {
		t.Fatalf("unknown command exit = %d", code)
	}
	if code := run([]string{"check"}); code != 2 {
		t.Fatalf("missing args exit = %d", code)
	}
	if code := run([]string{"version"}); code != 0 {
		t.Fatalf("version exit = %d", code)
	}
}
