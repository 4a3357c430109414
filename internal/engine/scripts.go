/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"vnengine/internal/script"
)

// scriptCache parses each script file at most once per engine. It satisfies
// script.Loader so every LazyRef the engine resolves goes through it.
type scriptCache struct {
	root   string
	source script.Loader
	byPath map[string]*script.Script
	parses int
}

func newScriptCache(root string, source script.Loader) *scriptCache {
	if source == nil {
		source = script.FileLoader
	}
	return &scriptCache{root: root, source: source, byPath: map[string]*script.Script{}}
}

func (c *scriptCache) Load(path string) (*script.Script, error) {
	full := script.ResolvePath(c.root, path)
	if s, ok := c.byPath[full]; ok {
		return s, nil
	}
	s, err := c.source.Load(full)
	if err != nil {
		return nil, err
	}
	c.parses++
	c.byPath[full] = s
	return s, nil
}

// LoadedScripts returns how many distinct script files the engine parsed.
func (e *Engine) LoadedScripts() int { return e.scripts.parses }
