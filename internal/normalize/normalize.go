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

// Package normalize cleans extracted email text and bounds its length before
// it is submitted for inference or written to storage.
package normalize

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bcem/enrichment/internal/models"
)

// MaxContentLength is the default upper bound, in characters, on text passed
// to the inference service.
const MaxContentLength = 3000

// ErrUnsupportedShape is returned for content that is neither a string nor a
// list of strings. The caller must skip the item.
var ErrUnsupportedShape = errors.New("unsupported content shape")

// Normalizer trims and truncates content to a fixed maximum length.
type Normalizer struct {
	maxLen int
}

// New creates a Normalizer. A non-positive maxLen selects MaxContentLength.
func New(maxLen int) *Normalizer {
	return &Normalizer{maxLen: Limit(maxLen)}
}

// Limit returns n, or MaxContentLength when n is not positive.
func Limit(n int) int {
	if n <= 0 {
		return MaxContentLength
	}
	return n
}

// MaxLen returns the configured bound.
func (n *Normalizer) MaxLen() int {
	return n.maxLen
}

// Normalize flattens content to a single string and applies NormalizeText.
// Fragments are joined with single spaces.
func (n *Normalizer) Normalize(c models.Content) (string, error) {
	switch c.Shape {
	case models.ShapeAbsent:
		return "", nil
	case models.ShapeText, models.ShapeFragments:
		return n.NormalizeText(strings.Join(c.Fragments, " ")), nil
	default:
		return "", ErrUnsupportedShape
	}
}

// NormalizeText strips surrounding whitespace and keeps at most maxLen
// characters. Whitespace exposed by the cut is trimmed as well, so the result
// is stable under repeated normalization.
func (n *Normalizer) NormalizeText(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n.maxLen {
		return s
	}
	return strings.TrimRightFunc(Truncate(s, n.maxLen), unicode.IsSpace)
}

// Truncate returns the first max characters of s. No marker is appended.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}

	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
