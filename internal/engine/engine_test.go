/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"vnengine/internal/attr"
	"vnengine/internal/frame"
	"vnengine/internal/script"
)

// memScripts parses scripts from an in-memory set of sources and counts parses.
type memScripts struct {
	src    map[string]string
	parses map[string]int
}

func newMemScripts(src map[string]string) *memScripts {
	return &memScripts{src: src, parses: map[string]int{}}
}

func (m *memScripts) Load(path string) (*script.Script, error) {
	text, ok := m.src[path]
	if !ok {
		return nil, &script.NotFoundError{Path: path}
	}
	m.parses[path]++
	return script.Parse(text, path)
}

// stubImages hands out 1x1 images and fails for paths listed in fail.
type stubImages struct {
	fail  map[string]bool
	loads int
}

func (s *stubImages) Load(path string) (image.Image, error) {
	s.loads++
	if s.fail[path] {
		return nil, errors.New("no such image")
	}
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

type countingRenderer struct{ dialogues, choices int }

func (r *countingRenderer) DrawDialogue(bg image.Image, sprites []frame.Sprite, character, text string, colors frame.Colors) (image.Image, error) {
	r.dialogues++
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, colors.DialogueBackground)
	return img, nil
}

func (r *countingRenderer) DrawChoice(bg image.Image, a, b string) (image.Image, error) {
	r.choices++
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func mustEngine(t *testing.T, text string, opts Options) *Engine {
	t.Helper()
	if opts.Images == nil {
		opts.Images = &stubImages{}
	}
	e, err := FromSource(text, "test.vn", opts)
	if err != nil {
		t.Fatalf("FromSource: %v", err)
	}
	return e
}

func step(t *testing.T, e *Engine, choice bool) script.Event {
	t.Helper()
	ev, err := e.Next(choice)
	if err != nil {
		t.Fatalf("Next(%v): %v", choice, err)
	}
	return ev
}

func spriteNames(e *Engine) []string {
	var out []string
	for _, s := range e.Sprites() {
		out = append(out, s.Name)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFrogDialogue(t *testing.T) {
	e := mustEngine(t, "[Frog]\nHello world", Options{})
	d, ok := e.Current().(*script.Dialogue)
	if !ok || d.Character != "Frog" || !equal(d.Lines, []string{"Hello world"}) {
		t.Fatalf("current = %#v", e.Current())
	}
	if ev := step(t, e, false); ev != nil {
		t.Fatalf("expected end of playback, got %#v", ev)
	}
	if !e.Done() || e.Index() != 1 {
		t.Fatalf("done=%v index=%d", e.Done(), e.Index())
	}
	// stepping past the end is a no-op
	if ev := step(t, e, true); ev != nil || e.Index() != 1 {
		t.Fatalf("next at end moved cursor to %d", e.Index())
	}
}

func TestSpriteShowThenHideEmptiesRegistry(t *testing.T) {
	e := mustEngine(t, "@sprite(alice,alice.png,100,200,show)\n@sprite(alice,hide)", Options{})
	step(t, e, false)
	if got := e.Sprites(); len(got) != 1 || got[0] != (Sprite{Name: "alice", Path: "alice.png", X: 100, Y: 200}) {
		t.Fatalf("after show: %+v", got)
	}
	step(t, e, false)
	if n := len(e.Sprites()); n != 0 {
		t.Fatalf("registry should be empty, has %d", n)
	}
}

func TestShowReplacesInPlace(t *testing.T) {
	e := mustEngine(t, `@sprite(a,a.png,0,0,show)
@sprite(b,b.png,0,0,show)
@sprite(a,a2.png,5,6,show)
@sprite(zed,hide)`, Options{})
	for !e.Done() {
		step(t, e, false)
	}
	got := e.Sprites()
	if !equal(spriteNames(e), []string{"b", "a"}) {
		t.Fatalf("order = %v", spriteNames(e))
	}
	if got[1].Path != "a2.png" || got[1].X != 5 {
		t.Fatalf("a not replaced: %+v", got[1])
	}
}

func TestPriorityInsertion(t *testing.T) {
	e := mustEngine(t, `@attr(sprite.hi.priority, 10)
@attr(sprite.mid.priority, 5)
@sprite(mid,m.png,0,0,show)
@sprite(low,l.png,0,0,show)
@sprite(hi,h.png,0,0,show)
@sprite(mid2,m.png,0,0,show)
@attr(sprite.mid2.priority, 5)
@sprite(tie,t.png,0,0,show)`, Options{})
	for i := 0; i < 6; i++ {
		step(t, e, false)
	}
	// new sprites go before the first entry whose priority is <= their own
	if want := []string{"hi", "mid", "mid2", "low"}; !equal(spriteNames(e), want) {
		t.Fatalf("order = %v, want %v", spriteNames(e), want)
	}
	step(t, e, false) // mid2 priority write re-sorts stably
	if want := []string{"hi", "mid", "mid2", "low"}; !equal(spriteNames(e), want) {
		t.Fatalf("after resort = %v, want %v", spriteNames(e), want)
	}
	step(t, e, false)
	if want := []string{"hi", "mid", "mid2", "tie", "low"}; !equal(spriteNames(e), want) {
		t.Fatalf("tie placement = %v, want %v", spriteNames(e), want)
	}
}

func TestPriorityChangeResorts(t *testing.T) {
	e := mustEngine(t, `@sprite(a,a.png,0,0,show)
@sprite(b,b.png,0,0,show)
@attr(sprite.b.priority, -1)
@attr(sprite.b.priority, 3)`, Options{})
	step(t, e, false)
	step(t, e, false)
	if want := []string{"b", "a"}; !equal(spriteNames(e), want) {
		t.Fatalf("order = %v, want %v", spriteNames(e), want)
	}
	step(t, e, false)
	if want := []string{"a", "b"}; !equal(spriteNames(e), want) {
		t.Fatalf("order = %v, want %v", spriteNames(e), want)
	}
	step(t, e, false)
	if want := []string{"b", "a"}; !equal(spriteNames(e), want) {
		t.Fatalf("order = %v, want %v", spriteNames(e), want)
	}
}

func TestHiddenSpriteStaysHiddenAfterPriority(t *testing.T) {
	e := mustEngine(t, `@sprite(x,x.png,1,1,show)
@sprite(x,hide)
@attr(sprite.x.priority, 9)
@attr(sprite.x.priority, 1)`, Options{})
	for !e.Done() {
		step(t, e, false)
	}
	if n := len(e.Sprites()); n != 0 {
		t.Fatalf("hidden sprite reappeared: %v", spriteNames(e))
	}
}

func TestUnconditionalJumpIgnoresChoice(t *testing.T) {
	for _, choice := range []bool{false, true} {
		src := newMemScripts(map[string]string{
			"main.vn":  "@jump(other.vn)\n[A]\nnever",
			"other.vn": "[B]\nhello",
		})
		e, err := FromFile("main.vn", Options{Scripts: src, Images: &stubImages{}})
		if err != nil {
			t.Fatalf("FromFile: %v", err)
		}
		ev := step(t, e, choice)
		if e.Script().Name != "other.vn" || e.Index() != 0 {
			t.Fatalf("choice=%v: cursor at %s:%d", choice, e.Script().Name, e.Index())
		}
		if d, ok := ev.(*script.Dialogue); !ok || d.Character != "B" {
			t.Fatalf("choice=%v: returned %#v", choice, ev)
		}
	}
}

func TestConditionalJump(t *testing.T) {
	sources := map[string]string{
		"main.vn": "@jump(Left, Right, left.vn)\n[A]\nstayed",
		"left.vn": "[L]\nwent left",
	}
	e, err := FromFile("main.vn", Options{Scripts: newMemScripts(sources), Images: &stubImages{}})
	if err != nil {
		t.Fatal(err)
	}
	step(t, e, false)
	if e.Script().Name != "main.vn" || e.Index() != 1 {
		t.Fatalf("declined branch moved to %s:%d", e.Script().Name, e.Index())
	}

	e, _ = FromFile("main.vn", Options{Scripts: newMemScripts(sources), Images: &stubImages{}})
	step(t, e, true)
	if e.Script().Name != "left.vn" || e.Index() != 0 {
		t.Fatalf("taken branch at %s:%d", e.Script().Name, e.Index())
	}
}

func TestBrokenJumpFailsOnlyWhenTaken(t *testing.T) {
	src := newMemScripts(map[string]string{
		"main.vn": "@jump(Yes, No, missing.vn)\n[A]\nfine",
	})
	e, err := FromFile("main.vn", Options{Scripts: src, Images: &stubImages{}})
	if err != nil {
		t.Fatalf("construction must not touch jump targets: %v", err)
	}
	_, err = e.Next(true)
	var nf *script.NotFoundError
	if !errors.As(err, &nf) || nf.Path != "missing.vn" {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	var se *StepError
	if !errors.As(err, &se) || se.Index != 0 {
		t.Fatalf("expected StepError at index 0, got %v", err)
	}
	if e.Index() != 0 || e.Script().Name != "main.vn" {
		t.Fatalf("failed jump moved cursor to %s:%d", e.Script().Name, e.Index())
	}
	step(t, e, false)
	if e.Index() != 1 {
		t.Fatalf("declined broken jump should advance, index %d", e.Index())
	}
}

func TestJumpTargetWithSyntaxErrorSurfacesParseError(t *testing.T) {
	src := newMemScripts(map[string]string{
		"main.vn": "@jump(bad.vn)",
		"bad.vn":  "orphan text",
	})
	e, err := FromFile("main.vn", Options{Scripts: src, Images: &stubImages{}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Next(false)
	var syn *script.SyntaxError
	if !errors.As(err, &syn) || syn.Line != 1 {
		t.Fatalf("expected SyntaxError, got %v", err)
	}
}

func TestScriptsParsedOncePerEngine(t *testing.T) {
	src := newMemScripts(map[string]string{
		"a.vn": "[A]\nin a\n@jump(b.vn)",
		"b.vn": "[B]\nin b\n@jump(a.vn)",
	})
	e, err := FromFile("a.vn", Options{Scripts: src, Images: &stubImages{}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 12; i++ {
		step(t, e, false)
	}
	if src.parses["a.vn"] != 1 || src.parses["b.vn"] != 1 {
		t.Fatalf("parses = %v", src.parses)
	}
	if e.LoadedScripts() != 2 {
		t.Fatalf("LoadedScripts = %d", e.LoadedScripts())
	}
}

func TestLoadBackgroundFailureDoesNotAdvance(t *testing.T) {
	imgs := &stubImages{fail: map[string]bool{"bg.png": true}}
	e := mustEngine(t, "@loadbg(bg.png)\n[A]\nhi", Options{Images: imgs})
	_, err := e.Next(false)
	if err == nil {
		t.Fatal("expected asset error")
	}
	if e.Index() != 0 || e.Background() != "" {
		t.Fatalf("failed load changed state: index=%d bg=%q", e.Index(), e.Background())
	}
	delete(imgs.fail, "bg.png")
	step(t, e, false)
	if e.Index() != 1 || e.Background() != "bg.png" {
		t.Fatalf("retry: index=%d bg=%q", e.Index(), e.Background())
	}
}

func TestBackgroundDecodedOnce(t *testing.T) {
	imgs := &stubImages{}
	e := mustEngine(t, "@loadbg(a.png)\n@loadbg(b.png)\n@loadbg(a.png)", Options{Images: imgs})
	for !e.Done() {
		step(t, e, false)
	}
	if imgs.loads != 2 {
		t.Fatalf("loads = %d, want 2", imgs.loads)
	}
	if e.Background() != "a.png" {
		t.Fatalf("background = %q", e.Background())
	}
}

func TestAttributeConflictDoesNotAdvance(t *testing.T) {
	e := mustEngine(t, "@attr(a, 1)\n@attr(a.b, 2)", Options{})
	step(t, e, false)
	_, err := e.Next(false)
	var ce *attr.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if e.Index() != 1 {
		t.Fatalf("index = %d", e.Index())
	}
}

func TestNextUntilRenderableAppliesSideEffects(t *testing.T) {
	e := mustEngine(t, `@loadbg(bg.png)
@sprite(alice,alice.png,1,2,show)
@attr(scene.mood, calm)
@custom(play, 1, 2)
[Alice]
Hi.`, Options{})
	ev, err := e.NextUntilRenderable()
	if err != nil {
		t.Fatal(err)
	}
	if d, ok := ev.(*script.Dialogue); !ok || d.Character != "Alice" {
		t.Fatalf("stopped at %#v", ev)
	}
	if e.Index() != 4 {
		t.Fatalf("index = %d", e.Index())
	}
	if e.Background() != "bg.png" || len(e.Sprites()) != 1 {
		t.Fatalf("side effects missing: bg=%q sprites=%v", e.Background(), spriteNames(e))
	}
	if v, _ := e.Attributes().Lookup("scene.mood"); v != "calm" {
		t.Fatalf("attr = %q", v)
	}
	// already renderable: no movement
	if _, err := e.NextUntilRenderable(); err != nil || e.Index() != 4 {
		t.Fatalf("second call moved to %d (%v)", e.Index(), err)
	}
}

func TestNextUntilCustomIntercepts(t *testing.T) {
	e := mustEngine(t, "@attr(x, 1)\n@custom(play, song.ogg)\n[A]\nhi", Options{})
	ev, err := e.NextUntil(func(ev script.Event) bool { return ev.Kind() == script.KindCustom })
	if err != nil {
		t.Fatal(err)
	}
	c, ok := ev.(*script.Custom)
	if !ok || c.Name != "play" || !equal(c.Args, []string{"song.ogg"}) {
		t.Fatalf("got %#v", ev)
	}
}

func TestNextUntilSkipLimit(t *testing.T) {
	src := newMemScripts(map[string]string{
		"loop.vn": "@attr(x, 1)\n@jump(loop.vn)",
	})
	e, err := FromFile("loop.vn", Options{Scripts: src, Images: &stubImages{}, MaxSkip: 50})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.NextUntilRenderable(); !errors.Is(err, ErrSkipLimit) {
		t.Fatalf("expected ErrSkipLimit, got %v", err)
	}
}

func TestNextUntilReachesEnd(t *testing.T) {
	e := mustEngine(t, "@attr(x, 1)\n@sprite(a,hide)", Options{})
	ev, err := e.NextUntilRenderable()
	if err != nil || ev != nil || !e.Done() {
		t.Fatalf("ev=%v err=%v done=%v", ev, err, e.Done())
	}
}

func TestFrameDialogue(t *testing.T) {
	e := mustEngine(t, `@loadbg(bg.png)
@sprite(alice,alice.png,10,20,show)
@attr(sprite.alice.scale, 0.5)
@attr(character.Alice.dialogue_color, FF000080)
@attr(character.Alice.text_color, 00FF00)
[Alice]
one
two`, Options{})
	if _, ok := e.Frame(); ok {
		t.Fatal("loadbg must not be renderable")
	}
	if _, err := e.NextUntilRenderable(); err != nil {
		t.Fatal(err)
	}
	f, ok := e.Frame()
	if !ok || f.Kind != frame.KindDialogue {
		t.Fatalf("frame = %+v", f)
	}
	if f.Background != "bg.png" || f.BackgroundImage == nil {
		t.Fatalf("background = %q %v", f.Background, f.BackgroundImage)
	}
	if f.Text != "one two" || f.Character != "Alice" {
		t.Fatalf("text = %q character = %q", f.Text, f.Character)
	}
	if len(f.Sprites) != 1 || f.Sprites[0].Scale != 0.5 || f.Sprites[0].X != 10 {
		t.Fatalf("sprites = %+v", f.Sprites)
	}
	if f.Colors.DialogueBackground != (color.RGBA{R: 255, A: 128}) || f.Colors.Text != (color.RGBA{G: 255, A: 255}) {
		t.Fatalf("colors = %+v", f.Colors)
	}
}

func TestFrameChoiceAndDefaults(t *testing.T) {
	e := mustEngine(t, "[Bob]\nhi\n@jump(Stay, Go, x.vn)", Options{})
	f, _ := e.Frame()
	if f.Colors != frame.DefaultColors() {
		t.Fatalf("default colors = %+v", f.Colors)
	}
	step(t, e, false)
	f, ok := e.Frame()
	if !ok || f.Kind != frame.KindChoice || f.ChoiceA != "Stay" || f.ChoiceB != "Go" {
		t.Fatalf("choice frame = %+v", f)
	}
}

func TestRenderCached(t *testing.T) {
	dir := t.TempDir()
	e := mustEngine(t, "[A]\nsame\n[A]\nsame\n[A]\ndifferent", Options{})
	r := &countingRenderer{}
	if _, _, err := e.RenderCached(r, filepath.Join(dir, "x.png")); !errors.Is(err, ErrCacheDisabled) {
		t.Fatalf("expected ErrCacheDisabled, got %v", err)
	}
	if err := e.EnableCache(filepath.Join(dir, "cache")); err != nil {
		t.Fatal(err)
	}
	var hits []bool
	for i := 0; !e.Done(); i++ {
		out := filepath.Join(dir, e.FrameName())
		rendered, hit, err := e.RenderCached(r, out)
		if err != nil || !rendered {
			t.Fatalf("frame %d: rendered=%v err=%v", i, rendered, err)
		}
		if _, err := os.Stat(out); err != nil {
			t.Fatalf("frame %d not written: %v", i, err)
		}
		hits = append(hits, hit)
		step(t, e, false)
	}
	if want := []bool{false, true, false}; len(hits) != 3 || hits[0] != want[0] || hits[1] != want[1] || hits[2] != want[2] {
		t.Fatalf("hits = %v", hits)
	}
	if r.dialogues != 2 {
		t.Fatalf("renderer called %d times", r.dialogues)
	}
	if e.Cache().Len() != 2 {
		t.Fatalf("cache entries = %d", e.Cache().Len())
	}
}

func TestRenderSkipsNonRenderable(t *testing.T) {
	dir := t.TempDir()
	e := mustEngine(t, "@attr(x, 1)\n[A]\nhi", Options{})
	out := filepath.Join(dir, "f.png")
	ok, err := e.Render(&countingRenderer{}, out)
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("file written for non-renderable event")
	}
	step(t, e, false)
	if ok, err := e.Render(&countingRenderer{}, out); err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestFrameName(t *testing.T) {
	src := newMemScripts(map[string]string{"story/intro.vn": "[A]\na\n[A]\nb"})
	e, err := FromFile("story/intro.vn", Options{Scripts: src, Images: &stubImages{}})
	if err != nil {
		t.Fatal(err)
	}
	step(t, e, false)
	if got := e.FrameName(); got != "intro_1.png" {
		t.Fatalf("FrameName = %q", got)
	}
}
