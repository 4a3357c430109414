/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDecodesAndCaches(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "bg.png"), 4, 3)
	l := NewLoader(root)

	img, err := l.Load("bg.png")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	// removing the file proves the second load is served from memory
	if err := os.Remove(filepath.Join(root, "bg.png")); err != nil {
		t.Fatal(err)
	}
	again, err := l.Load("bg.png")
	if err != nil || again != img {
		t.Fatalf("expected cached image, err=%v", err)
	}
	if _, ok := l.Cached("bg.png"); !ok || l.Len() != 1 {
		t.Fatalf("cache bookkeeping wrong")
	}
}

func TestLoadErrorKinds(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "junk.png"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(root)

	var ae *Error
	if _, err := l.Load("missing.png"); !errors.As(err, &ae) || ae.Kind != KindIO {
		t.Fatalf("expected io error, got %v", err)
	}
	if !errors.Is(ae, os.ErrNotExist) {
		t.Fatalf("io error should wrap fs.ErrNotExist: %v", ae)
	}
	if _, err := l.Load("junk.png"); !errors.As(err, &ae) || ae.Kind != KindDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("failures must not be cached")
	}
}

func TestResolve(t *testing.T) {
	l := NewLoader("/assets")
	if got := l.Resolve("bg/a.png"); got != filepath.Join("/assets", "bg/a.png") {
		t.Fatalf("relative resolve = %q", got)
	}
	abs := filepath.Join(t.TempDir(), "x.png")
	if got := l.Resolve(abs); got != abs {
		t.Fatalf("absolute resolve = %q", got)
	}
}
