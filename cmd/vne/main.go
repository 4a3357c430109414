/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"vnengine/internal/assets"
	"vnengine/internal/config"
	"vnengine/internal/crash"
	"vnengine/internal/engine"
	applog "vnengine/internal/log"
	"vnengine/internal/render"
	"vnengine/internal/telemetry"
	"vnengine/internal/textlayout"
	"vnengine/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `VN Engine %s

Usage:
  vne [-config file] <command> [args]

Commands:
  version                                Show version
  check <entry.vn>                       Parse every script reachable from entry
  play [-slot name] <entry.vn>           Play interactively, rendering frames
  render [-choices 1,2,...] <entry.vn>   Render every frame without prompting
  storyboard [-title t] <frames> <out.pdf>
                                         Lay rendered frames out as a PDF
  pack <entry.vn> <out.zip>              Bundle reachable scripts and images
  install <pack.zip> <dir>               Extract a pack, keeping existing files
  saves list|delete|export|import|dsn    Manage save slots
  cache stats|prune [-max size]          Inspect or trim the render cache
  serve [-addr :8080] <entry.vn>         Serve the web player
`, version.String())
}

type app struct {
	cfg  config.AppConfig
	sess *crash.Session
	tel  *telemetry.Client
	in   io.Reader
	out  io.Writer
	log  *slog.Logger
}

func main() { os.Exit(run(os.Args[1:])) }

func run(args []string) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, "Warning: .env:", err)
	}
	fset := flag.NewFlagSet("vne", flag.ContinueOnError)
	fset.Usage = func() { usage(os.Stderr) }
	cfgPath := fset.String("config", "", "config file (default $VNE_CONFIG or the per-user config)")
	if err := fset.Parse(args); err != nil {
		return 2
	}
	if fset.NArg() == 0 {
		usage(os.Stdout)
		return 0
	}

	path, err := config.Resolve(*cfgPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	cfg, err := config.Load(path)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})

	tel := telemetry.New(telemetry.FromEnv())
	defer tel.Close()
	a := &app{
		cfg:  cfg,
		sess: &crash.Session{Upload: tel.UploadCrash},
		tel:  tel,
		in:   os.Stdin,
		out:  os.Stdout,
		log:  applog.WithComponent("cli"),
	}
	defer crash.Recover(a.sess)
	a.log.Debug("start", slog.String("config", path), slog.Int("args", len(args)))

	cmd, rest := fset.Arg(0), fset.Args()[1:]
	var runErr error
	switch cmd {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(a.out, "VN Engine", version.String())
	case "check":
		runErr = a.check(rest)
	case "play":
		runErr = a.play(rest)
	case "render":
		runErr = a.renderAll(rest)
	case "storyboard":
		runErr = a.storyboard(rest)
	case "pack":
		runErr = a.pack(rest)
	case "install":
		runErr = a.install(rest)
	case "saves":
		runErr = a.saves(rest)
	case "cache":
		runErr = a.cache(rest)
	case "serve":
		runErr = a.serve(rest)
	case "help", "-h", "--help":
		usage(a.out)
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage(os.Stderr)
		return 2
	}
	a.tel.Event("command", map[string]any{"cmd": cmd, "ok": runErr == nil})
	if runErr != nil {
		var ue usageError
		if errors.As(runErr, &ue) {
			_, _ = fmt.Fprintln(os.Stderr, ue)
			return 2
		}
		a.log.Error("command failed", slog.String("cmd", cmd), slog.Any("err", runErr))
		_, _ = fmt.Fprintln(os.Stderr, "Error:", runErr)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

// locate splits an entry script into the story root and the entry path
// relative to it. A configured root wins over the entry's directory.
func (a *app) locate(entry string) (root, rel string, err error) {
	if root = a.cfg.Paths.Root; root != "" {
		return root, entry, nil
	}
	abs, err := filepath.Abs(entry)
	if err != nil {
		return "", "", err
	}
	return filepath.Dir(abs), filepath.Base(abs), nil
}

func (a *app) engineOptions(root string) engine.Options {
	return engine.Options{Root: root, MaxSkip: a.cfg.Play.MaxSkip}
}

// newScene builds the renderer described by the scene config.
func (a *app) newScene(root string) (*render.Scene, error) {
	sc := a.cfg.Scene
	scene := render.NewScene(assets.NewLoader(root))
	scene.Screen = rect(sc.Screen)
	scene.Text = rect(sc.Text)
	scene.Font.SizePt = sc.FontSize
	if sc.MinFontPt > 0 {
		scene.MinFontPt = sc.MinFontPt
	}
	if sc.Font != "" {
		lib := textlayout.DefaultLibrary()
		family := strings.TrimSuffix(filepath.Base(sc.Font), filepath.Ext(sc.Font))
		if err := lib.LoadFile(family, sc.Font); err != nil {
			return nil, err
		}
		scene.Fonts = textlayout.OTProvider{Lib: lib}
		scene.Font.Family = family
	}
	return scene, nil
}

func (a *app) cacheLimit() (uint64, error) {
	if a.cfg.Paths.MaxCache == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(a.cfg.Paths.MaxCache)
	if err != nil {
		return 0, fmt.Errorf("paths.max_cache: %w", err)
	}
	return n, nil
}

func rect(r config.Rect) image.Rectangle { return image.Rect(r.XMin, r.YMin, r.XMax, r.YMax) }
