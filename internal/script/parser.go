/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// maxLineBytes bounds a single source line.
const maxLineBytes = 1 << 20

// Parse compiles source text into a Script named name. The first error aborts
// parsing; no partial Script is ever returned.
func Parse(source, name string) (*Script, error) {
	s := &Script{Name: name, Events: []Event{}}
	var open *Dialogue

	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.ReplaceAll(scanner.Text(), "\r", "")
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		// column offset of the trimmed line inside the raw one
		indent := strings.Index(raw, line)

		switch line[0] {
		case '#':
			continue
		case '[':
			end := strings.IndexByte(line, ']')
			if end < 0 {
				return nil, &SyntaxError{File: name, Line: lineNo, Column: indent + len(line) + 1, Msg: "expected closing ]"}
			}
			d := &Dialogue{Character: strings.TrimSpace(line[1:end]), Lines: []string{}, Line: lineNo}
			if rest := strings.TrimSpace(line[end+1:]); rest != "" {
				d.Lines = append(d.Lines, rest)
			}
			s.Events = append(s.Events, d)
			open = d
		case '@':
			d, err := parseDirective(line, name, lineNo, indent)
			if err != nil {
				return nil, err
			}
			s.Events = append(s.Events, d)
		default:
			if open == nil {
				return nil, &SyntaxError{File: name, Line: lineNo, Column: indent + 1, Msg: "unmatched dialogue: text before any [Character] header"}
			}
			// text keeps its spacing; only carriage returns are dropped
			open.Lines = append(open.Lines, raw)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &SyntaxError{File: name, Line: lineNo + 1, Column: 1, Msg: err.Error(), Err: err}
	}
	return s, nil
}

// parseDirective handles a trimmed "@name(args)" line.
func parseDirective(line, file string, lineNo, indent int) (Directive, error) {
	open := strings.IndexByte(line, '(')
	if open < 0 {
		return nil, &SyntaxError{File: file, Line: lineNo, Column: indent + len(line) + 1, Msg: "expected ( after directive name"}
	}
	closing := strings.LastIndexByte(line, ')')
	if closing < open {
		return nil, &SyntaxError{File: file, Line: lineNo, Column: indent + len(line) + 1, Msg: "expected closing )"}
	}
	if trailing := strings.TrimSpace(line[closing+1:]); trailing != "" {
		return nil, &SyntaxError{File: file, Line: lineNo, Column: indent + closing + 2, Msg: fmt.Sprintf("unexpected text %q after )", trailing)}
	}
	name := strings.TrimSpace(line[1:open])
	decode, ok := decoders[name]
	if !ok {
		return nil, &SyntaxError{File: file, Line: lineNo, Column: indent + 2, Err: &UnknownDirectiveError{Name: name}}
	}
	d, err := decode(line[open+1 : closing])
	if err != nil {
		return nil, &SyntaxError{File: file, Line: lineNo, Column: indent + open + 2, Err: err}
	}
	setLine(d, lineNo)
	return d, nil
}

// ParseFile reads and parses the script at path. A missing file yields a
// *NotFoundError; other read failures are wrapped.
func ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	return Parse(string(data), path)
}
