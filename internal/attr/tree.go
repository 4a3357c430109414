/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package attr implements the scene attribute store: a tree of string keys
// whose values are either string leaves or nested nodes, addressed with dotted
// paths such as "sprite.alice.priority".
package attr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is either a leaf string or a nested Tree. Exactly one of the two is set.
type Value struct {
	leaf string
	node *Tree
}

// Leaf returns a leaf value.
func Leaf(s string) Value { return Value{leaf: s} }

// Node wraps a subtree.
func Node(t *Tree) Value { return Value{node: t} }

// IsNode reports whether v holds a subtree.
func (v Value) IsNode() bool { return v.node != nil }

// String returns the leaf text and true, or "" and false for nodes.
func (v Value) String() (string, bool) {
	if v.node != nil {
		return "", false
	}
	return v.leaf, true
}

// Tree returns the subtree, or nil for leaves.
func (v Value) Tree() *Tree { return v.node }

// Tree is a string keyed attribute node. The zero value is ready to use.
type Tree struct {
	m map[string]Value
}

// New returns an empty tree.
func New() *Tree { return &Tree{m: map[string]Value{}} }

// ConflictError reports a write that would turn a leaf into a node or
// replace a node with a leaf.
type ConflictError struct {
	Path string
	Key  string
	Leaf bool // true when a leaf blocked descending, false when a node blocked a leaf write
}

func (e *ConflictError) Error() string {
	if e.Leaf {
		return fmt.Sprintf("attribute %s holds a value, cannot write %s beneath it", e.Path, e.Key)
	}
	at := e.Key
	if e.Path != "" {
		at = e.Path + "." + e.Key
	}
	return fmt.Sprintf("attribute %s holds a node and cannot be overwritten with a value", at)
}

// Get returns the direct child under key.
func (t *Tree) Get(key string) (Value, bool) {
	if t == nil || t.m == nil {
		return Value{}, false
	}
	v, ok := t.m[key]
	return v, ok
}

// GetPath walks a dotted path, stopping at the first missing segment or at a
// leaf where a node was needed.
func (t *Tree) GetPath(path string) (Value, bool) {
	segs := strings.Split(strings.TrimSpace(path), ".")
	cur := t
	for i, seg := range segs {
		v, ok := cur.Get(seg)
		if !ok {
			return Value{}, false
		}
		if i == len(segs)-1 {
			return v, true
		}
		if !v.IsNode() {
			return Value{}, false
		}
		cur = v.node
	}
	return Value{}, false
}

// Lookup is GetPath for leaves only.
func (t *Tree) Lookup(path string) (string, bool) {
	v, ok := t.GetPath(path)
	if !ok {
		return "", false
	}
	return v.String()
}

// Int resolves a leaf as a base 10 integer. ok is false when the path is
// missing; err is set when a leaf exists but is not an integer.
func (t *Tree) Int(path string) (n int, ok bool, err error) {
	s, ok := t.Lookup(path)
	if !ok {
		return 0, false, nil
	}
	n, err = strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, true, fmt.Errorf("attribute %s: %q is not an integer", path, s)
	}
	return n, true, nil
}

// Float resolves a leaf as a float64, with the same contract as Int.
func (t *Tree) Float(path string) (f float64, ok bool, err error) {
	s, ok := t.Lookup(path)
	if !ok {
		return 0, false, nil
	}
	f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, true, fmt.Errorf("attribute %s: %q is not a number", path, s)
	}
	return f, true, nil
}

// Set stores Leaf(value) under key inside the node at path, creating empty
// nodes along the way. An empty path stores at the root. An existing leaf at
// the destination is replaced; any other shape mismatch is a *ConflictError
// and leaves the tree untouched.
func (t *Tree) Set(path, key, value string) error {
	if t.m == nil {
		t.m = map[string]Value{}
	}
	var segs []string
	if p := strings.TrimSpace(path); p != "" {
		segs = strings.Split(p, ".")
	}
	// validate before mutating so a conflict never leaves half-built nodes
	cur := t
	for i, seg := range segs {
		v, ok := cur.Get(seg)
		if !ok {
			break
		}
		if !v.IsNode() {
			return &ConflictError{Path: strings.Join(segs[:i+1], "."), Key: key, Leaf: true}
		}
		cur = v.node
		if i == len(segs)-1 {
			if existing, ok := cur.Get(key); ok && existing.IsNode() {
				return &ConflictError{Path: path, Key: key}
			}
		}
	}
	if len(segs) == 0 {
		if existing, ok := t.m[key]; ok && existing.IsNode() {
			return &ConflictError{Key: key}
		}
	}

	cur = t
	for _, seg := range segs {
		v, ok := cur.m[seg]
		if !ok {
			v = Node(New())
			cur.m[seg] = v
		}
		cur = v.node
	}
	cur.m[key] = Leaf(value)
	return nil
}

// SetPath splits a dotted path at its last '.' and calls Set.
func (t *Tree) SetPath(dotted, value string) error {
	if i := strings.LastIndexByte(dotted, '.'); i >= 0 {
		return t.Set(dotted[:i], dotted[i+1:], value)
	}
	return t.Set("", dotted, value)
}

// Keys returns the direct child keys in sorted order.
func (t *Tree) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.m))
	for k := range t.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of direct children.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.m)
}

// Walk visits every leaf in sorted key order with its full dotted path.
func (t *Tree) Walk(fn func(path, value string)) {
	t.walk("", fn)
}

func (t *Tree) walk(prefix string, fn func(path, value string)) {
	for _, k := range t.Keys() {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		v := t.m[k]
		if v.IsNode() {
			v.node.walk(full, fn)
			continue
		}
		fn(full, v.leaf)
	}
}

// Map converts the tree into nested map[string]any values, the shape used by
// JSON snapshots.
func (t *Tree) Map() map[string]any {
	out := make(map[string]any, t.Len())
	for _, k := range t.Keys() {
		v := t.m[k]
		if v.IsNode() {
			out[k] = v.node.Map()
		} else {
			out[k] = v.leaf
		}
	}
	return out
}

// FromMap rebuilds a tree from the shape produced by Map. Leaves must be strings.
func FromMap(m map[string]any) (*Tree, error) {
	t := New()
	for k, raw := range m {
		switch v := raw.(type) {
		case string:
			t.m[k] = Leaf(v)
		case map[string]any:
			sub, err := FromMap(v)
			if err != nil {
				return nil, fmt.Errorf("%s.%w", k, err)
			}
			t.m[k] = Node(sub)
		default:
			return nil, fmt.Errorf("%s: unsupported attribute value %T", k, raw)
		}
	}
	return t, nil
}
