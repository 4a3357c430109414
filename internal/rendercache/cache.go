/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package rendercache memoizes rendered frames on disk. Artifacts are named
// after a content hash of everything that influences their pixels, so a frame
// that was already drawn once is copied instead of being rendered again.
package rendercache

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"vnengine/internal/frame"
	applog "vnengine/internal/log"
)

// ArtifactExt is the extension of cached artifacts.
const ArtifactExt = ".png"

const tmpExt = ".tmp"

// Cache is an on-disk render cache plus its in-memory index. It is owned by a
// single engine and not safe for concurrent use.
type Cache struct {
	Dir   string
	index map[uint64]string
	log   *slog.Logger
}

// Enable creates dir if needed and indexes the artifacts already in it.
// Files whose name does not start with a decimal hash are ignored.
func Enable(dir string) (*Cache, error) {
	l := applog.WithOperation(applog.WithComponent("rendercache"), "enable").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan cache dir: %w", err)
	}
	c := &Cache{Dir: dir, index: make(map[uint64]string, len(entries)), log: applog.WithComponent("rendercache")}
	skipped := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), tmpExt) {
			// staging file of an interrupted write
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				l.Warn("remove stale temp file", slog.String("name", e.Name()), slog.Any("err", err))
			}
			continue
		}
		h, ok := hashFromName(e.Name())
		if !ok {
			skipped++
			continue
		}
		c.index[h] = filepath.Join(dir, e.Name())
	}
	l.Info("render cache ready", slog.Int("entries", len(c.index)), slog.Int("skipped", skipped))
	return c, nil
}

// hashFromName accepts only "<decimal hash>" + ArtifactExt.
func hashFromName(name string) (uint64, bool) {
	stem, ok := strings.CutSuffix(name, ArtifactExt)
	if !ok || stem == "" {
		return 0, false
	}
	h, err := strconv.ParseUint(stem, 10, 64)
	if err != nil {
		return 0, false
	}
	return h, true
}

// Len returns the number of indexed artifacts.
func (c *Cache) Len() int { return len(c.index) }

// Lookup returns the artifact path recorded for h.
func (c *Cache) Lookup(h uint64) (string, bool) {
	p, ok := c.index[h]
	return p, ok
}

// RenderCached writes the frame to outPath, copying the cached artifact when
// the frame hash is known and rendering through r otherwise. A fresh render is
// stored in the cache directory and indexed. hit reports whether r was skipped.
func (c *Cache) RenderCached(f *frame.Frame, r frame.Renderer, outPath string) (hit bool, err error) {
	h := Hash(f)
	if p, ok := c.index[h]; ok {
		err := copyFile(p, outPath)
		if err == nil {
			c.log.Debug("cache hit", slog.Uint64("hash", h), slog.String("out", outPath))
			return true, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("copy cached render: %w", err)
		}
		// artifact vanished behind our back; forget it and render again
		c.log.Warn("cached artifact missing", slog.String("path", p))
		delete(c.index, h)
	}

	img, err := frame.Draw(r, f)
	if err != nil {
		return false, fmt.Errorf("render %s frame: %w", f.Kind, err)
	}
	data, err := encodePNG(img)
	if err != nil {
		return false, err
	}
	if err := writeFile(outPath, data); err != nil {
		return false, err
	}
	entry := filepath.Join(c.Dir, strconv.FormatUint(h, 10)+ArtifactExt)
	if err := writeFile(entry, data); err != nil {
		return false, fmt.Errorf("store cache entry: %w", err)
	}
	c.index[h] = entry
	c.log.Debug("cache miss rendered", slog.Uint64("hash", h), slog.String("out", outPath), slog.String("size", humanize.Bytes(uint64(len(data)))))
	return false, nil
}

// Stats summarizes the indexed artifacts still present on disk.
type Stats struct {
	Entries int
	Bytes   int64
}

func (s Stats) String() string {
	return fmt.Sprintf("%d entries, %s", s.Entries, humanize.Bytes(uint64(s.Bytes)))
}

// Stats walks the index and sums artifact sizes.
func (c *Cache) Stats() (Stats, error) {
	var st Stats
	for _, p := range c.index {
		fi, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return st, err
		}
		st.Entries++
		st.Bytes += fi.Size()
	}
	return st, nil
}

// Prune deletes the least recently modified artifacts until the cache holds
// at most maxBytes. It returns the number of removed artifacts.
func (c *Cache) Prune(maxBytes int64) (int, error) {
	type item struct {
		hash uint64
		path string
		size int64
		mod  int64
	}
	var items []item
	var total int64
	for h, p := range c.index {
		fi, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			delete(c.index, h)
			continue
		}
		if err != nil {
			return 0, err
		}
		items = append(items, item{hash: h, path: p, size: fi.Size(), mod: fi.ModTime().UnixNano()})
		total += fi.Size()
	}
	if total <= maxBytes {
		return 0, nil
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].mod != items[j].mod {
			return items[i].mod < items[j].mod
		}
		return items[i].hash < items[j].hash
	})
	removed := 0
	for _, it := range items {
		if total <= maxBytes {
			break
		}
		if err := os.Remove(it.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("evict %s: %w", it.path, err)
		}
		delete(c.index, it.hash)
		total -= it.size
		removed++
	}
	c.log.Info("render cache pruned", slog.Int("removed", removed), slog.String("remaining", humanize.Bytes(uint64(total))))
	return removed, nil
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(path string, img image.Image) error {
	data, err := encodePNG(img)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFile writes through a temp file and rename so readers never observe a
// partial artifact.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure dir: %w", err)
		}
	}
	f, err := os.CreateTemp(filepath.Dir(path), "*"+tmpExt)
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmp := f.Name()
	_, werr := f.Write(data)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmp, 0o644)
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, werr)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure dir: %w", err)
		}
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}
