/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFamily is the family the bundled Go Regular font is registered under.
const DefaultFamily = "go"

// FontLibrary stores parsed OpenType fonts by family name.
type FontLibrary struct {
	fonts map[string]*opentype.Font
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[string]*opentype.Font)} }

// DefaultLibrary returns a library holding only the bundled Go Regular font.
func DefaultLibrary() *FontLibrary {
	fl := NewFontLibrary()
	// goregular.TTF is a known good font
	_ = fl.LoadBytes(DefaultFamily, goregular.TTF)
	return fl
}

// LoadFile parses a TTF/OTF file and registers it under family.
func (fl *FontLibrary) LoadFile(family, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	if err := fl.LoadBytes(family, data); err != nil {
		return fmt.Errorf("font %s: %w", path, err)
	}
	return nil
}

// LoadBytes parses font data and registers it under family.
func (fl *FontLibrary) LoadBytes(family string, data []byte) error {
	if fl.fonts == nil {
		fl.fonts = make(map[string]*opentype.Font)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}
	fl.fonts[family] = f
	return nil
}

// Has reports whether family is registered.
func (fl *FontLibrary) Has(family string) bool {
	if fl == nil {
		return false
	}
	_, ok := fl.fonts[family]
	return ok
}

// OTProvider resolves FontSpec using a FontLibrary and falls back to another
// Provider when the family is unknown or the face cannot be built.
type OTProvider struct {
	Lib      *FontLibrary
	DPI      float64 // default 72 if zero
	Fallback Provider
}

func (p OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.SizePt <= 0 {
		spec.SizePt = 12
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 72
	}
	if p.Lib != nil {
		if f, ok := p.Lib.fonts[spec.Family]; ok {
			face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: spec.SizePt, DPI: dpi, Hinting: font.HintingFull})
			if err == nil {
				return face, metricsOf(face)
			}
		}
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}

// Scalable reports whether faces change with FontSpec.SizePt.
func (p OTProvider) Scalable(spec FontSpec) bool { return p.Lib.Has(spec.Family) }
