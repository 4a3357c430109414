/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log provides the slog-based logging used across vnengine.
// Console output goes through a compact one-line handler (or JSON), and an
// optional rotating JSON file sink can be attached for long playback sessions.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"vnengine/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization.
// Values can be provided directly or via environment variables:
//   - VNE_LOG_LEVEL=debug|info|warn|error
//   - VNE_LOG_FORMAT=console|json
//   - VNE_LOG_FILE=<path> (enables file logging with rotation)
//   - VNE_LOG_SOURCE=true|false
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *slog.Logger
)

// L returns the process logger, initializing it from the environment on first use.
func L() *slog.Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Init configures the process logger and installs it as slog.Default.
func Init(opts Options) {
	lvl := parseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}

	var console slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		console = slog.NewJSONHandler(os.Stderr, hopts)
	default:
		console = &lineHandler{level: lvl, addSource: opts.AddSource, w: os.Stderr}
	}

	h := console
	if file := strings.TrimSpace(opts.File); file != "" {
		w := &lj.Logger{Filename: file, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		h = fanout(console, slog.NewJSONHandler(w, hopts))
	}

	logger := slog.New(h).With(
		slog.String("app", "vnengine"),
		slog.String("ver", version.String()),
		slog.Time("ts_init", time.Now()),
	)

	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
	slog.SetDefault(logger)
}

// FromEnv builds Options from VNE_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("VNE_LOG_LEVEL", "info"),
		Format:    getenv("VNE_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("VNE_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("VNE_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
