/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assets loads and decodes the images a scene refers to (backgrounds
// and sprites) and memoizes them per loader instance.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	// registered decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	applog "vnengine/internal/log"
)

// ErrorKind separates unreadable files from undecodable ones.
type ErrorKind int

const (
	KindIO ErrorKind = iota
	KindDecode
)

func (k ErrorKind) String() string {
	if k == KindDecode {
		return "decode"
	}
	return "io"
}

// Error is returned by Loader.Load.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("asset %s: %s: %v", e.Path, e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// ImageLoader is the collaborator contract the engine and renderers depend on.
type ImageLoader interface {
	Load(path string) (image.Image, error)
}

// Loader decodes images from disk relative to Root and keeps every decoded
// image for the lifetime of the loader. It is not safe for concurrent use.
type Loader struct {
	Root  string
	cache map[string]image.Image
	log   *slog.Logger
}

// NewLoader returns a loader resolving relative paths against root.
func NewLoader(root string) *Loader {
	return &Loader{Root: root, cache: map[string]image.Image{}, log: applog.WithComponent("assets")}
}

// Resolve maps a script-relative path onto the filesystem.
func (l *Loader) Resolve(path string) string {
	if filepath.IsAbs(path) || l.Root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(l.Root, path)
}

// Cached returns a previously decoded image without touching the disk.
func (l *Loader) Cached(path string) (image.Image, bool) {
	img, ok := l.cache[path]
	return img, ok
}

// Load returns the decoded image at path, reading it on first use. Failures
// are not cached, so a later call retries.
func (l *Loader) Load(path string) (image.Image, error) {
	if img, ok := l.cache[path]; ok {
		return img, nil
	}
	if l.cache == nil {
		l.cache = map[string]image.Image{}
	}
	full := l.Resolve(path)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &Error{Kind: KindIO, Path: full, Err: err}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Kind: KindDecode, Path: full, Err: err}
	}
	if l.log != nil {
		l.log.Debug("image decoded", slog.String("path", full), slog.String("format", format),
			slog.Int("w", img.Bounds().Dx()), slog.Int("h", img.Bounds().Dy()))
	}
	l.cache[path] = img
	return img, nil
}

// Len returns the number of cached images.
func (l *Loader) Len() int { return len(l.cache) }
