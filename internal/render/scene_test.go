/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"vnengine/internal/frame"
	"vnengine/internal/textlayout"
)

func testScene() *Scene {
	s := NewScene(nil)
	s.Fonts = textlayout.BasicProvider{}
	return s
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func rgba(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestDrawDialogueLayers(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	s := testScene()
	s.Images = spriteLoader{"a.png": solid(20, 20, color.RGBA{G: 255, A: 255})}
	img, err := s.DrawDialogue(solid(64, 48, red), []frame.Sprite{{Name: "a", Path: "a.png", X: 100, Y: 100, Scale: 1}}, "Alice", "Hello there", frame.DefaultColors())
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != s.Screen {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if got := rgba(img, 5, 5); got.R < 250 || got.G > 5 || got.B > 5 {
		t.Fatalf("background pixel = %v", got)
	}
	if got := rgba(img, 100, 100); got.G != 255 || got.R != 0 {
		t.Fatalf("sprite pixel = %v", got)
	}
	// text box darkens the bottom of the background by half
	if got := rgba(img, 630, 470); got.R < 120 || got.R > 135 || got.A != 255 {
		t.Fatalf("text box pixel = %v", got)
	}
}

type spriteLoader map[string]image.Image

func (m spriteLoader) Load(path string) (image.Image, error) {
	if img, ok := m[path]; ok {
		return img, nil
	}
	return nil, errors.New("missing " + path)
}

func TestSpriteScaleAndClamp(t *testing.T) {
	s := testScene()
	green := color.RGBA{G: 255, A: 255}
	s.Images = spriteLoader{"a.png": solid(10, 10, green)}
	img, err := s.DrawDialogue(nil, []frame.Sprite{{Name: "a", Path: "a.png", X: 0, Y: 0, Scale: 2}}, "", "", frame.DefaultColors())
	if err != nil {
		t.Fatal(err)
	}
	// clamped to the top left corner and 20px wide
	if got := rgba(img, 19, 19); got != green {
		t.Fatalf("scaled sprite pixel = %v", got)
	}
	if got := rgba(img, 21, 21); got.A != 0 {
		t.Fatalf("outside sprite = %v", got)
	}
}

func TestMissingSpriteFails(t *testing.T) {
	s := testScene()
	s.Images = spriteLoader{}
	if _, err := s.DrawDialogue(nil, []frame.Sprite{{Name: "ghost", Path: "ghost.png", Scale: 1}}, "", "", frame.DefaultColors()); err == nil {
		t.Fatal("expected error for missing sprite image")
	}
}

func TestDialogueColors(t *testing.T) {
	s := testScene()
	colors := frame.Colors{Text: color.RGBA{B: 255, A: 255}, DialogueBackground: color.RGBA{R: 255, A: 255}}
	img, err := s.DrawDialogue(nil, nil, "", "x", colors)
	if err != nil {
		t.Fatal(err)
	}
	if got := rgba(img, 630, 470); got != (color.RGBA{R: 255, A: 255}) {
		t.Fatalf("box color = %v", got)
	}
	found := false
	b := img.Bounds()
	for y := s.Text.Min.Y; y < b.Max.Y && !found; y++ {
		for x := s.Text.Min.X; x < s.Text.Min.X+20; x++ {
			if c := rgba(img, x, y); c.B > 200 && c.R < 50 {
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatal("no text pixels drawn in text color")
	}
}

func TestDrawChoice(t *testing.T) {
	s := testScene()
	img, err := s.DrawChoice(nil, "Left", "Right")
	if err != nil {
		t.Fatal(err)
	}
	_, m := s.Fonts.Resolve(s.Font)
	bar := s.Screen.Dy()/4 - (m.Ascent+m.Descent)/2
	if got := rgba(img, 2, bar); got.A == 0 {
		t.Fatalf("expected choice bar at y=%d, got %v", bar, got)
	}
	if got := rgba(img, 2, s.Screen.Dy()-2); got.A != 0 {
		t.Fatalf("bottom should stay empty, got %v", got)
	}
}
