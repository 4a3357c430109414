/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "fmt"

// SyntaxError is fatal to the construction of a script. When the cause is a
// directive, Err holds an *UnknownDirectiveError or a *DirectiveError.
type SyntaxError struct {
	File   string
	Line   int // 1-based
	Column int // 1-based
	Msg    string
	Err    error
}

func (e *SyntaxError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, msg)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// UnknownDirectiveError names a directive that has no decoder.
type UnknownDirectiveError struct {
	Name string
}

func (e *UnknownDirectiveError) Error() string { return fmt.Sprintf("unknown directive %q", e.Name) }

// DirectiveError reports arguments a decoder could not accept.
type DirectiveError struct {
	Directive string
	Detail    string
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("directive %s cannot handle arguments: %s", e.Directive, e.Detail)
}

// NotFoundError is returned when a script file does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("script %s does not exist", e.Path) }
