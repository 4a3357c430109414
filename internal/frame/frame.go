/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package frame describes what a renderer needs to draw one visible step of
// playback, and the renderer collaborator contract itself.
package frame

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"vnengine/internal/attr"
)

// Kind is the type of a renderable frame.
type Kind int

const (
	KindDialogue Kind = iota
	KindChoice
)

func (k Kind) String() string {
	if k == KindChoice {
		return "choice"
	}
	return "dialogue"
}

// Sprite is a visible sprite as it will be drawn.
type Sprite struct {
	Name  string
	Path  string
	X, Y  uint32
	Scale float64 // 1 when unset
}

// Colors are the attribute-derived colors of a dialogue frame.
type Colors struct {
	Text               color.RGBA
	DialogueBackground color.RGBA
}

var (
	DefaultTextColor          = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	DefaultDialogueBackground = color.RGBA{A: 127}
)

// DefaultColors returns the colors used when no attribute overrides them.
func DefaultColors() Colors {
	return Colors{Text: DefaultTextColor, DialogueBackground: DefaultDialogueBackground}
}

// Frame is the renderable context of the current event.
type Frame struct {
	Kind Kind
	// Background is the background path as written in the script, "" for none.
	Background      string
	BackgroundImage image.Image

	// dialogue frames
	Sprites   []Sprite
	Character string
	Text      string
	Colors    Colors

	// choice frames
	ChoiceA, ChoiceB string
}

// Renderer draws frames. Implementations receive already decoded backgrounds
// and load sprite images themselves.
type Renderer interface {
	DrawDialogue(bg image.Image, sprites []Sprite, character, text string, colors Colors) (image.Image, error)
	DrawChoice(bg image.Image, choiceA, choiceB string) (image.Image, error)
}

// Draw dispatches f to the matching Renderer method.
func Draw(r Renderer, f *Frame) (image.Image, error) {
	switch f.Kind {
	case KindChoice:
		return r.DrawChoice(f.BackgroundImage, f.ChoiceA, f.ChoiceB)
	default:
		return r.DrawDialogue(f.BackgroundImage, f.Sprites, f.Character, f.Text, f.Colors)
	}
}

// ResolveColors reads the per-character colors from the attribute store.
// The dialogue box color comes from character.<name>.dialogue_color, falling
// back to a root leaf named after the character; the text color comes from
// character.<name>.text_color. Values are hex RRGGBBAA or RRGGBB. The
// returned errors name values that were present but unparsable and were
// replaced by defaults.
func ResolveColors(attrs *attr.Tree, character string) (Colors, []error) {
	c := DefaultColors()
	if attrs == nil || character == "" {
		return c, nil
	}
	var errs []error
	if s, ok := attrs.Lookup("character." + character + ".dialogue_color"); ok {
		if col, err := ParseHex(s); err == nil {
			c.DialogueBackground = col
		} else {
			errs = append(errs, err)
		}
	} else if v, ok := attrs.Get(character); ok {
		if s, leaf := v.String(); leaf {
			if col, err := ParseHex(s); err == nil {
				c.DialogueBackground = col
			} else {
				errs = append(errs, err)
			}
		}
	}
	if s, ok := attrs.Lookup("character." + character + ".text_color"); ok {
		if col, err := ParseHex(s); err == nil {
			c.Text = col
		} else {
			errs = append(errs, err)
		}
	}
	return c, errs
}

// ParseHex parses RRGGBBAA or RRGGBB, with an optional leading '#'.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(h) {
	case 6:
		h += "ff"
	case 8:
	default:
		return color.RGBA{}, fmt.Errorf("color %q: expected RRGGBB or RRGGBBAA", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
