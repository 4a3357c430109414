/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package attr

import (
	"errors"
	"reflect"
	"testing"
)

func TestSetThenGetPath(t *testing.T) {
	tr := New()
	if err := tr.Set("a.b", "c", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok := tr.GetPath("a.b.c")
	if !ok {
		t.Fatalf("a.b.c missing")
	}
	if s, leaf := v.String(); !leaf || s != "1" {
		t.Fatalf("a.b.c = %q leaf=%v", s, leaf)
	}
	node, ok := tr.GetPath("a.b")
	if !ok || !node.IsNode() || node.Tree().Len() != 1 {
		t.Fatalf("a.b should be a node with one child")
	}
}

func TestSetRootAndOverwrite(t *testing.T) {
	var tr Tree
	if err := tr.Set("", "Alice", "FF0000FF"); err != nil {
		t.Fatalf("set root: %v", err)
	}
	if err := tr.Set("", "Alice", "00FF00FF"); err != nil {
		t.Fatalf("overwrite leaf: %v", err)
	}
	if s, _ := tr.Lookup("Alice"); s != "00FF00FF" {
		t.Fatalf("Alice = %q", s)
	}
}

func TestGetPathStopsEarly(t *testing.T) {
	tr := New()
	_ = tr.Set("a", "b", "1")
	for _, p := range []string{"missing", "a.missing", "a.b.c", "a.b.c.d"} {
		if _, ok := tr.GetPath(p); ok {
			t.Fatalf("GetPath(%q) should fail", p)
		}
	}
}

func TestConflictsAreErrors(t *testing.T) {
	tr := New()
	_ = tr.Set("a", "b", "1")

	err := tr.Set("a.b", "c", "2")
	var ce *ConflictError
	if !errors.As(err, &ce) || !ce.Leaf || ce.Path != "a.b" {
		t.Fatalf("expected leaf conflict, got %v", err)
	}
	err = tr.Set("", "a", "flat")
	if !errors.As(err, &ce) || ce.Leaf {
		t.Fatalf("expected node conflict, got %v", err)
	}
	err = tr.SetPath("a", "x")
	if !errors.As(err, &ce) {
		t.Fatalf("expected node conflict via SetPath, got %v", err)
	}
	// tree unchanged
	if s, _ := tr.Lookup("a.b"); s != "1" {
		t.Fatalf("a.b changed to %q", s)
	}
}

func TestConflictLeavesNoPartialNodes(t *testing.T) {
	tr := New()
	_ = tr.Set("", "x", "1")
	if err := tr.Set("x.y", "z", "2"); err == nil {
		t.Fatalf("expected conflict")
	}
	if tr.Len() != 1 {
		t.Fatalf("root changed: %v", tr.Keys())
	}
}

func TestNumericAccessors(t *testing.T) {
	tr := New()
	_ = tr.SetPath("sprite.alice.priority", " 5 ")
	_ = tr.SetPath("sprite.alice.scale", "1.25")
	_ = tr.SetPath("sprite.bob.priority", "high")

	if n, ok, err := tr.Int("sprite.alice.priority"); !ok || err != nil || n != 5 {
		t.Fatalf("Int = %d %v %v", n, ok, err)
	}
	if f, ok, err := tr.Float("sprite.alice.scale"); !ok || err != nil || f != 1.25 {
		t.Fatalf("Float = %v %v %v", f, ok, err)
	}
	if _, ok, err := tr.Int("sprite.bob.priority"); !ok || err == nil {
		t.Fatalf("expected parse error for non-numeric priority")
	}
	if _, ok, _ := tr.Int("sprite.carol.priority"); ok {
		t.Fatalf("missing path must report ok=false")
	}
}

func TestMapRoundTripAndWalk(t *testing.T) {
	tr := New()
	_ = tr.SetPath("a.b.c", "1")
	_ = tr.SetPath("a.e", "3")
	_ = tr.SetPath("d", "2")

	m := tr.Map()
	back, err := FromMap(m)
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if !reflect.DeepEqual(back.Map(), m) {
		t.Fatalf("round trip mismatch: %v vs %v", back.Map(), m)
	}

	var got []string
	tr.Walk(func(p, v string) { got = append(got, p+"="+v) })
	want := []string{"a.b.c=1", "a.e=3", "d=2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Walk = %v, want %v", got, want)
	}

	if _, err := FromMap(map[string]any{"n": 1.0}); err == nil {
		t.Fatalf("non-string leaf must be rejected")
	}
}
