/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = old
		_, _ = io.Copy(io.Discard, r)
	})
}

func interceptExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func findReport(t *testing.T, dir string) []byte {
	t.Helper()
	files, _ := os.ReadDir(dir)
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log") {
			b, err := os.ReadFile(filepath.Join(dir, f.Name()))
			if err != nil {
				t.Fatalf("read report: %v", err)
			}
			return b
		}
	}
	t.Fatalf("no crash report in %s", dir)
	return nil
}

func TestRecoverWritesReportAndAutosaves(t *testing.T) {
	silenceStderr(t)
	code := interceptExit(t)
	dir := t.TempDir()
	saved := false
	var uploaded []byte
	sess := &Session{
		Dir:    dir,
		Script: "intro.vn",
		Index:  func() int { return 7 },
		Autosave: func() (string, error) {
			saved = true
			return filepath.Join(dir, "autosave.json"), nil
		},
		Upload: func(report []byte) { uploaded = report },
	}

	func() {
		defer Recover(sess)
		panic("boom")
	}()

	b := findReport(t, dir)
	for _, want := range []string{"Panic: boom", "Script: intro.vn", "Index: 7"} {
		if !bytes.Contains(b, []byte(want)) {
			t.Fatalf("report lacks %q:\n%s", want, b)
		}
	}
	if !saved {
		t.Fatal("autosave not attempted")
	}
	if !bytes.Equal(uploaded, b) {
		t.Fatalf("uploaded report differs from the written one")
	}
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
}

func TestRecoverSurvivesAutosaveFailure(t *testing.T) {
	silenceStderr(t)
	code := interceptExit(t)
	dir := t.TempDir()
	func() {
		defer Recover(&Session{Dir: dir, Autosave: func() (string, error) { return "", errors.New("disk full") }})
		panic(errors.New("bad state"))
	}()
	if b := findReport(t, dir); !bytes.Contains(b, []byte("Panic: bad state")) {
		t.Fatalf("report: %s", b)
	}
	if *code != 2 {
		t.Fatalf("exit code %d", *code)
	}
}

func TestRecoverNoPanic(t *testing.T) {
	code := interceptExit(t)
	func() {
		defer Recover(nil)
	}()
	if *code != -1 {
		t.Fatalf("exit called without panic: %d", *code)
	}
}
