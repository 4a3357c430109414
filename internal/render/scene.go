/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render draws dialogue and choice frames: a scaled background, the
// visible sprites, a translucent text box with the speaker and wrapped text.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"vnengine/internal/assets"
	"vnengine/internal/frame"
	"vnengine/internal/textlayout"
)

// choiceBar is the backdrop behind choice labels.
var choiceBar = color.NRGBA{A: 127}

// Scene is the reference frame.Renderer.
type Scene struct {
	Screen image.Rectangle
	// Text is the area the speaker name and dialogue are laid out in.
	Text      image.Rectangle
	Font      textlayout.FontSpec
	MinFontPt float64
	Fonts     textlayout.Provider
	// Images loads sprites. Sprite paths arrive already resolved.
	Images assets.ImageLoader
}

// NewScene returns a 640x480 scene with the bundled font.
func NewScene(images assets.ImageLoader) *Scene {
	return &Scene{
		Screen:    image.Rect(0, 0, 640, 480),
		Text:      image.Rect(20, 340, 620, 480),
		Font:      textlayout.FontSpec{Family: textlayout.DefaultFamily, SizePt: 24},
		MinFontPt: 8,
		Fonts:     textlayout.OTProvider{Lib: textlayout.DefaultLibrary()},
		Images:    images,
	}
}

func (s *Scene) canvas(bg image.Image) *image.RGBA {
	img := image.NewRGBA(s.Screen)
	if bg != nil {
		xdraw.CatmullRom.Scale(img, s.Screen, bg, bg.Bounds(), draw.Over, nil)
	}
	return img
}

func (s *Scene) provider() textlayout.Provider {
	if s.Fonts == nil {
		return textlayout.BasicProvider{}
	}
	return s.Fonts
}

// DrawDialogue implements frame.Renderer.
func (s *Scene) DrawDialogue(bg image.Image, sprites []frame.Sprite, character, text string, colors frame.Colors) (image.Image, error) {
	img := s.canvas(bg)
	for _, sp := range sprites {
		if err := s.drawSprite(img, sp); err != nil {
			return nil, err
		}
	}

	face, m := s.provider().Resolve(s.Font)
	box := image.Rect(s.Screen.Min.X, s.Text.Min.Y-m.Ascent, s.Screen.Max.X, s.Text.Max.Y)
	draw.Draw(img, box, image.NewUniform(color.NRGBA(colors.DialogueBackground)), image.Point{}, draw.Over)

	ink := image.NewUniform(colors.Text)
	y := s.Text.Min.Y
	if character != "" {
		y += m.Ascent
		drawString(img, face, ink, s.Text.Min.X, y, character)
		y += m.Descent + m.LineGap
	}
	block := textlayout.Fit(s.provider(), s.Font, text, s.Text.Dx(), s.Text.Max.Y-y, s.MinFontPt)
	for _, line := range block.Lines {
		y += block.Metrics.Ascent
		drawString(img, block.Face, ink, s.Text.Min.X, y, line.Text)
		y += block.Metrics.Descent + block.Metrics.LineGap
	}
	return img, nil
}

// drawSprite overlays a sprite centered on its position, scaled and clamped
// to the screen.
func (s *Scene) drawSprite(dst *image.RGBA, sp frame.Sprite) error {
	if s.Images == nil {
		return fmt.Errorf("sprite %s: no image loader", sp.Name)
	}
	src, err := s.Images.Load(sp.Path)
	if err != nil {
		return fmt.Errorf("sprite %s: %w", sp.Name, err)
	}
	if sp.Scale > 0 && sp.Scale != 1 {
		b := src.Bounds()
		w, h := int(float64(b.Dx())*sp.Scale), int(float64(b.Dy())*sp.Scale)
		if w < 1 || h < 1 {
			return nil
		}
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, b, draw.Src, nil)
		src = scaled
	}
	b := src.Bounds()
	x := clamp(int(sp.X)-b.Dx()/2, s.Screen.Min.X, s.Screen.Max.X)
	y := clamp(int(sp.Y)-b.Dy()/2, s.Screen.Min.Y, s.Screen.Max.Y)
	r := image.Rect(x, y, x+b.Dx(), y+b.Dy())
	draw.Draw(dst, r, src, b.Min, draw.Over)
	return nil
}

// DrawChoice implements frame.Renderer. The two labels are centered on bars
// in the upper half of the screen.
func (s *Scene) DrawChoice(bg image.Image, choiceA, choiceB string) (image.Image, error) {
	img := s.canvas(bg)
	face, m := s.provider().Resolve(s.Font)
	glyph := m.Ascent + m.Descent
	ink := image.NewUniform(color.White)
	first := s.Screen.Min.Y + s.Screen.Dy()/4
	for i, label := range []string{choiceA, choiceB} {
		base := first + i*5*m.Ascent
		bar := image.Rect(s.Screen.Min.X, base-glyph, s.Screen.Max.X, base-glyph+glyph*3/2)
		draw.Draw(img, bar, image.NewUniform(choiceBar), image.Point{}, draw.Over)
		x := s.Screen.Min.X + (s.Screen.Dx()-textlayout.Measure(face, label))/2
		drawString(img, face, ink, x, base, label)
	}
	return img, nil
}

func drawString(dst draw.Image, face font.Face, src image.Image, x, baseline int, s string) {
	d := &font.Drawer{Dst: dst, Src: src, Face: face, Dot: fixed.P(x, baseline)}
	d.DrawString(s)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ frame.Renderer = (*Scene)(nil)
