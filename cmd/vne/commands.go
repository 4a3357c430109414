/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"vnengine/internal/config"
	"vnengine/internal/engine"
	"vnengine/internal/export"
	"vnengine/internal/frame"
	"vnengine/internal/pack"
	"vnengine/internal/rendercache"
	"vnengine/internal/server"
	"vnengine/internal/storage"
)

func (a *app) check(args []string) error {
	if len(args) != 1 {
		return usageError("check requires <entry.vn>")
	}
	root, rel, err := a.locate(args[0])
	if err != nil {
		return err
	}
	scripts, broken := 0, 0
	err = engine.Walk(rel, root, nil, func(v engine.Visit) error {
		name, _ := filepath.Rel(root, v.Path)
		if v.Err != nil {
			broken++
			_, _ = fmt.Fprintf(a.out, "FAIL %s: %v\n", name, v.Err)
			return nil
		}
		scripts++
		_, _ = fmt.Fprintf(a.out, "ok   %s (%d events, depth %d)\n", name, v.Script.Len(), v.Depth)
		return nil
	})
	if err != nil {
		return err
	}
	if broken > 0 {
		return fmt.Errorf("%d of %d scripts failed to parse", broken, scripts+broken)
	}
	return nil
}

func (a *app) storyboard(args []string) error {
	fs := flag.NewFlagSet("storyboard", flag.ContinueOnError)
	title := fs.String("title", "", "document title")
	captions := fs.Bool("captions", true, "print frame names under frames")
	if err := fs.Parse(args); err != nil {
		return usageError("storyboard: " + err.Error())
	}
	if fs.NArg() != 2 {
		return usageError("storyboard requires <frames dir> <out.pdf>")
	}
	frames, err := export.FramesIn(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := export.Storyboard(frames, fs.Arg(1), export.StoryboardOptions{Title: *title, Captions: *captions}); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Wrote %d frames to %s\n", len(frames), fs.Arg(1))
	return nil
}

func (a *app) pack(args []string) error {
	if len(args) != 2 {
		return usageError("pack requires <entry.vn> <out.zip>")
	}
	root, rel, err := a.locate(args[0])
	if err != nil {
		return err
	}
	m, err := pack.Export(rel, root, args[1], nil)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Packed %d scripts and %d images into %s\n", len(m.Scripts), len(m.Assets), args[1])
	return nil
}

func (a *app) install(args []string) error {
	if len(args) != 2 {
		return usageError("install requires <pack.zip> <dir>")
	}
	m, err := pack.ReadManifest(args[0])
	if err != nil {
		return err
	}
	n, err := pack.Install(args[0], args[1])
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Installed %d files; entry script is %s\n", n, filepath.Join(args[1], filepath.FromSlash(m.Entry)))
	return nil
}

func (a *app) saves(args []string) error {
	if len(args) == 0 {
		return usageError("saves requires list|delete <slot>|export <slot> <file>|import <file>|dsn <dsn>")
	}
	if args[0] == "dsn" {
		if len(args) != 2 {
			return usageError("saves dsn requires <dsn> (\"\" forgets it)")
		}
		return config.RememberStoreDSN(args[1])
	}
	ctx := context.Background()
	store, err := storage.Open(ctx, a.cfg.StoreDSN())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	switch {
	case args[0] == "list":
		list, err := store.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "SLOT\tSCRIPT\tINDEX\tUPDATED")
		for _, sv := range list {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", sv.Slot, sv.State.Script, sv.State.Index, humanize.Time(sv.UpdatedAt))
		}
		return tw.Flush()
	case args[0] == "delete" && len(args) == 2:
		return store.Delete(ctx, args[1])
	case args[0] == "export" && len(args) == 3:
		sv, err := store.Get(ctx, args[1])
		if err != nil {
			return err
		}
		f, err := os.Create(args[2])
		if err != nil {
			return err
		}
		if err := storage.Export(f, sv); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	case args[0] == "import" && len(args) == 2:
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		sv, err := storage.Import(f)
		if err != nil {
			return err
		}
		if _, err := store.Put(ctx, sv.Slot, sv.State); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Imported slot %q\n", sv.Slot)
		return nil
	}
	return usageError("saves requires list|delete <slot>|export <slot> <file>|import <file>|dsn <dsn>")
}

func (a *app) cache(args []string) error {
	if len(args) == 0 {
		return usageError("cache requires stats|prune")
	}
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	limit := fs.String("max", a.cfg.Paths.MaxCache, "size limit for prune, e.g. 200MB")
	dir := fs.String("dir", a.cfg.Paths.Cache, "cache directory")
	if err := fs.Parse(args[1:]); err != nil {
		return usageError("cache: " + err.Error())
	}
	c, err := rendercache.Enable(*dir)
	if err != nil {
		return err
	}
	switch args[0] {
	case "stats":
		st, err := c.Stats()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "%s: %s\n", *dir, st)
		return nil
	case "prune":
		if *limit == "" {
			return usageError("cache prune requires -max or paths.max_cache")
		}
		n, err := humanize.ParseBytes(*limit)
		if err != nil {
			return usageError("cache prune: " + err.Error())
		}
		removed, err := c.Prune(int64(n))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Removed %d entries\n", removed)
		return nil
	}
	return usageError("cache requires stats|prune")
}

func (a *app) serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "listen address")
	saves := fs.Bool("saves", true, "enable save slots")
	if err := fs.Parse(args); err != nil {
		return usageError("serve: " + err.Error())
	}
	if fs.NArg() != 1 {
		return usageError("serve requires <entry.vn>")
	}
	root, rel, err := a.locate(fs.Arg(0))
	if err != nil {
		return err
	}
	if _, err := a.newScene(root); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := server.Options{
		Root:    root,
		Entry:   rel,
		Frames:  a.cfg.Paths.Frames,
		MaxSkip: a.cfg.Play.MaxSkip,
		Renderer: func(root string) frame.Renderer {
			s, _ := a.newScene(root)
			return s
		},
	}
	if a.cfg.Paths.Cache != "" {
		opts.Cache = cachePath(root, a.cfg.Paths.Cache)
	}
	if *saves {
		store, err := storage.Open(ctx, a.cfg.StoreDSN())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts.Store = store
	}

	srv := &http.Server{Addr: *addr, Handler: server.New(opts).Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.log.Info("serving", slog.String("addr", *addr), slog.String("entry", fs.Arg(0)))
	_, _ = fmt.Fprintf(a.out, "Serving %s on %s\n", fs.Arg(0), *addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdown)
}
