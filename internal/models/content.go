// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContentShape describes how a free-text field arrived on the wire.
type ContentShape int

const (
	ShapeAbsent ContentShape = iota
	ShapeText
	ShapeFragments
	ShapeUnsupported
)

// Content is a body field that may be a single string or a list of string
// fragments. Any other JSON value decodes as ShapeUnsupported.
type Content struct {
	Shape     ContentShape
	Fragments []string
}

// Text builds a single-string Content.
func Text(s string) Content {
	return Content{Shape: ShapeText, Fragments: []string{s}}
}

// Fragments builds a multi-fragment Content.
func Fragments(parts ...string) Content {
	return Content{Shape: ShapeFragments, Fragments: parts}
}

// Present reports whether the field was supplied at all.
func (c Content) Present() bool {
	return c.Shape != ShapeAbsent
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*c = Content{}
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode content string: %w", err)
		}
		*c = Text(s)
	case len(trimmed) > 0 && trimmed[0] == '[':
		var parts []string
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			*c = Content{Shape: ShapeUnsupported}
			return nil
		}
		*c = Fragments(parts...)
	default:
		*c = Content{Shape: ShapeUnsupported}
	}
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Shape {
	case ShapeText:
		if len(c.Fragments) == 0 {
			return json.Marshal("")
		}
		return json.Marshal(c.Fragments[0])
	case ShapeFragments:
		if c.Fragments == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Fragments)
	default:
		return []byte("null"), nil
	}
}
