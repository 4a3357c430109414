/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the CLI into a crash report file and a last
// autosave of the running session.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "vnengine/internal/log"
	"vnengine/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Session describes what was running when the panic happened.
type Session struct {
	// Dir receives the crash report; empty uses the temp dir.
	Dir    string
	Script string
	Index  func() int
	// Autosave persists the session and returns where it went.
	Autosave func() (string, error)
	// Upload receives the report text, e.g. for an opted-in crash endpoint.
	Upload func(report []byte)
}

// Recover captures a panic, logs an error with stacktrace, writes an error
// report file, attempts an autosave of the session (if provided) and exits
// with code 2.
//
// Usage: defer crash.Recover(sess)
func Recover(s *Session) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, report, err := writeReport(s, r, stack)
		if err != nil {
			l.Error("write crash report failed", slog.Any("err", err))
		}
		if s != nil && s.Upload != nil {
			s.Upload(report)
		}
		if s != nil && s.Autosave != nil {
			if path, err := s.Autosave(); err != nil {
				l.Error("crash autosave failed", slog.Any("err", err))
			} else {
				l.Info("crash autosave written", slog.String("path", path))
			}
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		exitFn(2)
	}
}

func writeReport(s *Session, panicVal any, stack []byte) (string, []byte, error) {
	dir := os.TempDir()
	if s != nil && s.Dir != "" {
		dir = s.Dir
		_ = os.MkdirAll(dir, 0o755)
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "VN Engine Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if s != nil && s.Script != "" {
		_, _ = fmt.Fprintf(&buf, "Script: %s\n", s.Script)
		if s.Index != nil {
			_, _ = fmt.Fprintf(&buf, "Index: %d\n", s.Index())
		}
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	return path, buf.Bytes(), os.WriteFile(path, buf.Bytes(), 0o644)
}
