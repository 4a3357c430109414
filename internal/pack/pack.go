/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pack bundles a story (its scripts and the images they use) into a
// zip archive and installs such archives into a story root.
package pack

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vnengine/internal/engine"
	applog "vnengine/internal/log"
	"vnengine/internal/script"
	"vnengine/internal/version"
)

// ManifestName is the archive entry holding the pack manifest.
const ManifestName = "vne-pack.json"

// Manifest describes a story pack. Paths are slash separated and relative
// to the story root.
type Manifest struct {
	Format  string    `json:"format"`
	App     string    `json:"app,omitempty"`
	Created time.Time `json:"created"`
	Entry   string    `json:"entry"`
	Scripts []string  `json:"scripts"`
	Assets  []string  `json:"assets"`
}

const manifestFormat = "vne-pack/1"

// Collect walks the story starting at entry and returns the manifest of every
// script and image it reaches. Any script that fails to load, and any path
// that escapes root, is an error.
func Collect(entry, root string, l script.Loader) (Manifest, error) {
	m := Manifest{Format: manifestFormat, App: version.String(), Created: time.Now().UTC()}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return m, err
	}
	assets := map[string]bool{}
	var errs []error
	err = engine.Walk(entry, absRoot, l, func(v engine.Visit) error {
		rel, err := relTo(absRoot, v.Path)
		if err != nil {
			return err
		}
		if v.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rel, v.Err))
			return nil
		}
		if v.Depth == 0 {
			m.Entry = rel
		}
		m.Scripts = append(m.Scripts, rel)
		for _, a := range v.Script.Assets() {
			ar, err := relTo(absRoot, script.ResolvePath(absRoot, a))
			if err != nil {
				return err
			}
			assets[ar] = true
		}
		return nil
	})
	if err != nil {
		return m, err
	}
	if len(errs) > 0 {
		return m, errors.Join(errs...)
	}
	for a := range assets {
		m.Assets = append(m.Assets, a)
	}
	sort.Strings(m.Assets)
	return m, nil
}

func relTo(root, p string) (string, error) {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside the story root", p)
	}
	return rel, nil
}

// Export writes the pack for the story starting at entry to destZip.
func Export(entry, root, destZip string, l script.Loader) (Manifest, error) {
	lg := applog.WithOperation(applog.WithComponent("pack"), "export").With(slog.String("root", root))
	if strings.TrimSpace(destZip) == "" {
		return Manifest{}, errors.New("destination is required")
	}
	m, err := Collect(entry, root, l)
	if err != nil {
		return m, err
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return m, fmt.Errorf("ensure zip dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destZip), ".pack-*")
	if err != nil {
		return m, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := writeZip(tmp, root, m); err != nil {
		_ = tmp.Close()
		lg.Error("zip build failed", slog.Any("err", err))
		return m, fmt.Errorf("build zip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return m, err
	}
	if err := os.Rename(tmp.Name(), destZip); err != nil {
		return m, err
	}
	lg.Info("pack exported",
		slog.Int("scripts", len(m.Scripts)),
		slog.Int("assets", len(m.Assets)),
		slog.String("zip", destZip))
	return m, nil
}

func writeZip(w io.Writer, root string, m Manifest) error {
	zw := zip.NewWriter(w)
	mw, err := zw.Create(ManifestName)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return err
	}
	files := append(append([]string{}, m.Scripts...), m.Assets...)
	for _, rel := range files {
		if err := addFile(zw, root, rel); err != nil {
			return err
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, root, rel string) error {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	fw, err := zw.Create(rel)
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, f)
	return err
}

// ReadManifest returns the manifest stored in a pack.
func ReadManifest(zipPath string) (Manifest, error) {
	var m Manifest
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return m, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()
	f, err := r.Open(ManifestName)
	if err != nil {
		return m, fmt.Errorf("pack has no manifest: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Format != manifestFormat {
		return m, fmt.Errorf("unsupported pack format %q", m.Format)
	}
	return m, nil
}

// Install extracts a pack into root. Existing files are kept and skipped.
// It returns the number of files written.
func Install(zipPath, root string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("pack"), "install").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return 0, errors.New("root is required")
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	installed := 0
	for _, f := range r.File {
		if f.Name == ManifestName || f.FileInfo().IsDir() {
			continue
		}
		clean := path.Clean(f.Name)
		if !filepath.IsLocal(filepath.FromSlash(clean)) {
			return installed, fmt.Errorf("unsafe path %q in pack", f.Name)
		}
		target := filepath.Join(root, filepath.FromSlash(clean))
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing file", slog.String("path", target))
			continue
		}
		if err := extract(f, target); err != nil {
			return installed, err
		}
		installed++
	}
	l.Info("pack installed", slog.Int("files", installed))
	return installed, nil
}

func extract(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
