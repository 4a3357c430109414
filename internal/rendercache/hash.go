/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package rendercache

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"vnengine/internal/frame"
)

// Hash digests every input that affects the pixels of f. Sprites are hashed in
// registry order, so two registries holding the same sprites in a different
// order hash differently even when their priorities would draw them alike.
func Hash(f *frame.Frame) uint64 {
	if f.Kind == frame.KindChoice {
		return HashChoice(f.Background, f.ChoiceA, f.ChoiceB)
	}
	return HashDialogue(f.Background, f.Sprites, f.Character, f.Text, f.Colors)
}

// HashDialogue hashes the inputs of a dialogue frame.
func HashDialogue(background string, sprites []frame.Sprite, character, text string, colors frame.Colors) uint64 {
	d := newDigest(frame.KindDialogue)
	d.str(background)
	d.u64(uint64(len(sprites)))
	for _, s := range sprites {
		d.str(s.Name)
		d.str(s.Path)
		d.u64(uint64(s.X))
		d.u64(uint64(s.Y))
		d.u64(math.Float64bits(s.Scale))
	}
	d.str(character)
	d.str(text)
	d.raw([]byte{colors.Text.R, colors.Text.G, colors.Text.B, colors.Text.A})
	d.raw([]byte{colors.DialogueBackground.R, colors.DialogueBackground.G, colors.DialogueBackground.B, colors.DialogueBackground.A})
	return d.Sum64()
}

// HashChoice hashes the inputs of a choice frame.
func HashChoice(background, choiceA, choiceB string) uint64 {
	d := newDigest(frame.KindChoice)
	d.str(background)
	d.str(choiceA)
	d.str(choiceB)
	return d.Sum64()
}

// digest length-prefixes every field so adjacent strings cannot collide by
// shifting bytes from one into the other.
type digest struct{ *xxhash.Digest }

func newDigest(k frame.Kind) digest {
	d := digest{xxhash.New()}
	d.u64(uint64(k))
	return d
}

func (d digest) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, _ = d.Write(b[:])
}

func (d digest) str(s string) {
	d.u64(uint64(len(s)))
	_, _ = d.WriteString(s)
}

func (d digest) raw(b []byte) { _, _ = d.Write(b) }
