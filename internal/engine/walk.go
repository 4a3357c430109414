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
	"path/filepath"

	"vnengine/internal/script"
)

// SkipTargets can be returned from a WalkFunc to keep walking without
// following the jump targets of the visited script.
var SkipTargets = errors.New("skip targets")

// Visit is one script reached by Walk. Err is set when the script failed to
// load; its targets are then unknown and not followed.
type Visit struct {
	Path   string
	From   string
	Depth  int
	Script *script.Script
	Err    error
}

// WalkFunc is called once per distinct script path. Returning an error other
// than SkipTargets stops the walk with that error.
type WalkFunc func(v Visit) error

// Walk visits entry and every script reachable from it through jump targets,
// breadth first and at most once per path, so cyclic jumps terminate. Paths
// are resolved against root. A nil loader parses from disk.
func Walk(entry, root string, l script.Loader, fn WalkFunc) error {
	if l == nil {
		l = script.FileLoader
	}
	start := filepath.Clean(script.ResolvePath(root, entry))
	seen := map[string]bool{start: true}
	queue := []Visit{{Path: start}}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		v.Script, v.Err = l.Load(v.Path)
		err := fn(v)
		if errors.Is(err, SkipTargets) {
			continue
		}
		if err != nil {
			return err
		}
		if v.Err != nil {
			continue
		}
		for _, t := range v.Script.Targets() {
			p := filepath.Clean(script.ResolvePath(root, t))
			if seen[p] {
				continue
			}
			seen[p] = true
			queue = append(queue, Visit{Path: p, From: v.Path, Depth: v.Depth + 1})
		}
	}
	return nil
}
