/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// Loader turns a script path into a parsed Script.
type Loader interface {
	Load(path string) (*Script, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (*Script, error)

func (f LoaderFunc) Load(path string) (*Script, error) { return f(path) }

// FileLoader parses scripts straight from disk with no sharing between references.
var FileLoader Loader = LoaderFunc(ParseFile)

// LazyRef is a jump target: a path plus the Script it resolved to, filled on
// first successful resolution and reused by this reference afterwards.
// A LazyRef is not safe for concurrent resolution.
type LazyRef struct {
	Path   string
	script *Script
}

// NewLazyRef returns an unresolved reference to path.
func NewLazyRef(path string) *LazyRef { return &LazyRef{Path: path} }

// Resolve returns the memoized Script or loads it through l. A failed load
// leaves the reference unresolved so a later call retries.
func (r *LazyRef) Resolve(l Loader) (*Script, error) {
	if r.script != nil {
		return r.script, nil
	}
	if l == nil {
		l = FileLoader
	}
	s, err := l.Load(r.Path)
	if err != nil {
		return nil, err
	}
	r.script = s
	return s, nil
}

// Resolved reports whether the reference already holds a Script.
func (r *LazyRef) Resolved() bool { return r.script != nil }
