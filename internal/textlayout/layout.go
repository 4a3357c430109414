/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout measures and word-wraps dialogue text for the renderer.
package textlayout

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string
	SizePt float64
}

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap int
}

// LineHeight is the distance between two baselines.
func (m Metrics) LineHeight() int { return m.Ascent + m.Descent + m.LineGap }

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider uses the fixed size basicfont.Face7x13, ignoring the spec.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	return f, metricsOf(f)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	return Metrics{
		Ascent:  m.Ascent.Round(),
		Descent: m.Descent.Round(),
		LineGap: m.Height.Round() - m.Ascent.Round() - m.Descent.Round(),
	}
}

// Line is a wrapped line and its advance width in pixels.
type Line struct {
	Text  string
	Width int
}

// Measure returns the advance width of s in pixels.
func Measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Round()
}

// Wrap breaks text on spaces into lines no wider than maxWidth. A single word
// wider than maxWidth gets a line of its own. Explicit newlines always break.
func Wrap(face font.Face, text string, maxWidth int) []Line {
	var lines []Line
	space := Measure(face, " ")
	for _, para := range strings.Split(text, "\n") {
		var cur []string
		width := 0
		for _, word := range strings.Fields(para) {
			w := Measure(face, word)
			if len(cur) > 0 && maxWidth > 0 && width+space+w > maxWidth {
				lines = append(lines, Line{Text: strings.Join(cur, " "), Width: width})
				cur, width = nil, 0
			}
			if len(cur) > 0 {
				width += space
			}
			cur = append(cur, word)
			width += w
		}
		lines = append(lines, Line{Text: strings.Join(cur, " "), Width: width})
	}
	return lines
}

// Block is text wrapped into a box with the face it was laid out with.
type Block struct {
	Face    font.Face
	Metrics Metrics
	SizePt  float64
	Lines   []Line
}

// Height is the vertical extent of all lines.
func (b Block) Height() int { return len(b.Lines) * b.Metrics.LineHeight() }

// Fit wraps text into maxWidth and shrinks the font in 5% steps until the
// block is at most maxHeight tall or minPt is reached. Providers that cannot
// scale return the first layout.
func Fit(p Provider, spec FontSpec, text string, maxWidth, maxHeight int, minPt float64) Block {
	if p == nil {
		p = BasicProvider{}
	}
	if minPt <= 0 {
		minPt = 6
	}
	scalable := false
	if s, ok := p.(interface{ Scalable(FontSpec) bool }); ok {
		scalable = s.Scalable(spec)
	}
	for {
		face, m := p.Resolve(spec)
		b := Block{Face: face, Metrics: m, SizePt: spec.SizePt, Lines: Wrap(face, text, maxWidth)}
		if !scalable || maxHeight <= 0 || b.Height() <= maxHeight || spec.SizePt*0.95 < minPt {
			return b
		}
		spec.SizePt *= 0.95
	}
}
