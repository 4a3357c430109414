/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "path/filepath"

// ResolvePath maps a path written in a script onto the filesystem: absolute
// paths are kept, relative ones are joined to root.
func ResolvePath(root, path string) string {
	if filepath.IsAbs(path) || root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// Targets lists the jump target paths of s in event order, duplicates removed.
func (s *Script) Targets() []string {
	seen := map[string]bool{}
	var out []string
	for _, ev := range s.Events {
		if j, ok := ev.(*Jump); ok && !seen[j.Target.Path] {
			seen[j.Target.Path] = true
			out = append(out, j.Target.Path)
		}
	}
	return out
}

// Assets lists the background and sprite image paths s refers to, in event
// order, duplicates removed.
func (s *Script) Assets() []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, ev := range s.Events {
		switch v := ev.(type) {
		case *LoadBackground:
			add(v.Path)
		case *Sprite:
			if v.Visible {
				add(v.Path)
			}
		}
	}
	return out
}
