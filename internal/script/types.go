/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script turns script source text into an immutable sequence of events.
//
// Source format, one construct per line:
//
//	[Character]            opens a dialogue block
//	any other text         a line of the most recently opened dialogue block
//	@name(args)            a directive (jump, sprite, loadbg, attr, custom)
//	# comment              ignored, as are blank lines
//
// Jump targets are not loaded at parse time; they are wrapped in a LazyRef
// and resolved by whoever plays the script, on first traversal.
package script

import "strings"

// Kind discriminates the concrete event types.
type Kind int

const (
	KindDialogue Kind = iota
	KindJump
	KindSprite
	KindBackground
	KindAttr
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindDialogue:
		return "dialogue"
	case KindJump:
		return "jump"
	case KindSprite:
		return "sprite"
	case KindBackground:
		return "loadbg"
	case KindAttr:
		return "attr"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Event is one step of a script: a *Dialogue or one of the directive types.
type Event interface {
	Kind() Kind
	// SourceLine is the 1-based line the event was declared on.
	SourceLine() int
}

// Directive is an Event produced by an @name(args) line.
type Directive interface {
	Event
	Directive() string
}

// Dialogue is a [Character] block and the text lines that follow it.
type Dialogue struct {
	Character string
	Lines     []string
	Line      int
}

func (d *Dialogue) Kind() Kind { return KindDialogue }
func (d *Dialogue) SourceLine() int { return d.Line }

// Text joins the dialogue lines with single spaces, the form handed to renderers.
func (d *Dialogue) Text() string { return strings.Join(d.Lines, " ") }

// Choices are the two labels of a conditional jump. A is the label that follows the jump.
type Choices struct {
	A, B string
}

// Jump moves playback to another script. Without choices it is an unconditional goto.
type Jump struct {
	Choices *Choices
	Target  *LazyRef
	Line    int
}

func (j *Jump) Kind() Kind { return KindJump }
func (j *Jump) SourceLine() int { return j.Line }
func (j *Jump) Directive() string { return "jump" }
func (j *Jump) Conditional() bool { return j.Choices != nil }

// Sprite shows (upserts) or hides a named sprite. Path, X and Y are only
// meaningful when Visible is true.
type Sprite struct {
	Name    string
	Path    string
	X, Y    uint32
	Visible bool
	Line    int
}

func (s *Sprite) Kind() Kind { return KindSprite }
func (s *Sprite) SourceLine() int { return s.Line }
func (s *Sprite) Directive() string { return "sprite" }

// LoadBackground switches the current background image.
type LoadBackground struct {
	Path string
	Line int
}

func (b *LoadBackground) Kind() Kind { return KindBackground }
func (b *LoadBackground) SourceLine() int { return b.Line }
func (b *LoadBackground) Directive() string { return "loadbg" }

// SetAttribute writes Value under Key inside the attribute node addressed by Path.
// An empty Path addresses the root.
type SetAttribute struct {
	Path  string
	Key   string
	Value string
	Line  int
}

func (a *SetAttribute) Kind() Kind { return KindAttr }
func (a *SetAttribute) SourceLine() int { return a.Line }
func (a *SetAttribute) Directive() string { return "attr" }

// FullPath returns Path and Key joined by a dot.
func (a *SetAttribute) FullPath() string {
	if a.Path == "" {
		return a.Key
	}
	return a.Path + "." + a.Key
}

// Custom is the caller-defined escape hatch; the engine attaches no meaning to it.
type Custom struct {
	Name string
	Args []string
	Line int
}

func (c *Custom) Kind() Kind { return KindCustom }
func (c *Custom) SourceLine() int { return c.Line }
func (c *Custom) Directive() string { return "custom" }

// Renderable reports whether e corresponds to a visible frame: a dialogue
// block or a jump that offers a choice.
func Renderable(e Event) bool {
	switch v := e.(type) {
	case *Dialogue:
		return true
	case *Jump:
		return v.Conditional()
	default:
		return false
	}
}

// Script is a parsed, immutable event sequence. Name is the path the script
// was loaded from, or the caller-supplied name for in-memory sources.
type Script struct {
	Name   string
	Events []Event
}

// Len returns the number of events.
func (s *Script) Len() int { return len(s.Events) }

// At returns the event at i, or nil when i is out of range.
func (s *Script) At(i int) Event {
	if i < 0 || i >= len(s.Events) {
		return nil
	}
	return s.Events[i]
}
