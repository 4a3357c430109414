/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"strconv"
	"strings"
)

// decoders maps directive names to their argument decoders. Each wrapper
// returns an untyped nil on failure so no typed nil pointer reaches the interface.
var decoders = map[string]func(args string) (Directive, error){
	"jump": func(a string) (Directive, error) {
		d, err := DecodeJump(a)
		if err != nil {
			return nil, err
		}
		return d, nil
	},
	"sprite": func(a string) (Directive, error) {
		d, err := DecodeSprite(a)
		if err != nil {
			return nil, err
		}
		return d, nil
	},
	"loadbg": func(a string) (Directive, error) {
		d, err := DecodeLoadBackground(a)
		if err != nil {
			return nil, err
		}
		return d, nil
	},
	"attr": func(a string) (Directive, error) {
		d, err := DecodeAttr(a)
		if err != nil {
			return nil, err
		}
		return d, nil
	},
	"custom": func(a string) (Directive, error) {
		d, err := DecodeCustom(a)
		if err != nil {
			return nil, err
		}
		return d, nil
	},
}

// Directives lists the names the parser accepts after '@'.
func Directives() []string { return []string{"jump", "sprite", "loadbg", "attr", "custom"} }

// DecodeJump decodes "target" or "choiceA, choiceB, target". Only the first
// three comma separated fields are considered.
func DecodeJump(args string) (*Jump, error) {
	fields := strings.Split(args, ",")
	if len(fields) > 3 {
		fields = fields[:3]
	}
	j := &Jump{}
	var target string
	switch len(fields) {
	case 3:
		j.Choices = &Choices{A: strings.TrimSpace(fields[0]), B: strings.TrimSpace(fields[1])}
		target = fields[2]
	case 1:
		target = fields[0]
	default:
		return nil, &DirectiveError{Directive: "jump", Detail: fmt.Sprintf("expects 1 or 3 arguments, got %d", len(fields))}
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, &DirectiveError{Directive: "jump", Detail: "empty target script"}
	}
	j.Target = NewLazyRef(target)
	return j, nil
}

// DecodeSprite decodes "name, path, x, y, show|hide" or "name, hide".
// All whitespace is removed before splitting.
func DecodeSprite(args string) (*Sprite, error) {
	compact := strings.Join(strings.Fields(args), "")
	fields := strings.Split(compact, ",")
	switch len(fields) {
	case 5:
		s := &Sprite{Name: fields[0], Path: fields[1]}
		if s.Name == "" {
			return nil, &DirectiveError{Directive: "sprite", Detail: "sprite name is empty"}
		}
		switch fields[4] {
		case "show":
			s.Visible = true
		case "hide":
			return s, nil
		default:
			return nil, &DirectiveError{Directive: "sprite", Detail: fmt.Sprintf("visibility must either be show or hide, got %q", fields[4])}
		}
		if s.Path == "" {
			return nil, &DirectiveError{Directive: "sprite", Detail: "shown sprite needs an image path"}
		}
		x, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return nil, &DirectiveError{Directive: "sprite", Detail: fmt.Sprintf("x must be an unsigned integer, got %q", fields[2])}
		}
		y, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return nil, &DirectiveError{Directive: "sprite", Detail: fmt.Sprintf("y must be an unsigned integer, got %q", fields[3])}
		}
		s.X, s.Y = uint32(x), uint32(y)
		return s, nil
	case 2:
		if fields[1] != "hide" {
			return nil, &DirectiveError{Directive: "sprite", Detail: "non-hidden sprite directives expect 5 arguments"}
		}
		if fields[0] == "" {
			return nil, &DirectiveError{Directive: "sprite", Detail: "sprite name is empty"}
		}
		return &Sprite{Name: fields[0]}, nil
	default:
		return nil, &DirectiveError{Directive: "sprite", Detail: "expects 5 arguments for show and 2 arguments for hide"}
	}
}

// DecodeLoadBackground takes the whole argument text as the background path.
// Existence is only checked when the background is actually loaded.
func DecodeLoadBackground(args string) (*LoadBackground, error) {
	return &LoadBackground{Path: args}, nil
}

// DecodeAttr decodes "path.key, value". The text before the last '.' of the
// first field is the node path, the rest is the key; without a '.' the key is
// stored at the root.
func DecodeAttr(args string) (*SetAttribute, error) {
	fields := strings.Split(args, ",")
	full := strings.TrimSpace(fields[0])
	if full == "" {
		return nil, &DirectiveError{Directive: "attr", Detail: "expected key"}
	}
	if len(fields) < 2 {
		return nil, &DirectiveError{Directive: "attr", Detail: "expected value"}
	}
	a := &SetAttribute{Value: strings.TrimSpace(fields[1])}
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		a.Path = strings.TrimSpace(full[:i])
		a.Key = strings.TrimSpace(full[i+1:])
	} else {
		a.Key = full
	}
	if a.Key == "" {
		return nil, &DirectiveError{Directive: "attr", Detail: fmt.Sprintf("empty key in %q", full)}
	}
	return a, nil
}

// DecodeCustom accepts "name, arg, ..." as well as "name(arg, ...)".
func DecodeCustom(args string) (*Custom, error) {
	var name, rest string
	if open := strings.IndexByte(args, '('); open >= 0 {
		closing := strings.LastIndexByte(args, ')')
		if closing < open {
			return nil, &DirectiveError{Directive: "custom", Detail: "expected closing )"}
		}
		name, rest = args[:open], args[open+1:closing]
	} else if comma := strings.IndexByte(args, ','); comma >= 0 {
		name, rest = args[:comma], args[comma+1:]
	} else {
		name = args
	}
	c := &Custom{Name: strings.TrimSpace(name), Args: []string{}}
	if c.Name == "" {
		return nil, &DirectiveError{Directive: "custom", Detail: "expected a directive name"}
	}
	if strings.TrimSpace(rest) != "" {
		for _, a := range strings.Split(rest, ",") {
			c.Args = append(c.Args, strings.TrimSpace(a))
		}
	}
	return c, nil
}

func setLine(d Directive, line int) {
	switch v := d.(type) {
	case *Jump:
		v.Line = line
	case *Sprite:
		v.Line = line
	case *LoadBackground:
		v.Line = line
	case *SetAttribute:
		v.Line = line
	case *Custom:
		v.Line = line
	}
}
