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

package payload

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html"
)

// blockElements separate words in the rendered text.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"tr": true, "td": true, "th": true, "table": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// HTMLToText strips markup from an HTML document and returns its visible
// text with whitespace collapsed to single spaces.
func HTMLToText(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		slog.Warn("failed to parse HTML body", "error", err)
		return ""
	}

	var b strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			// Non-content elements
			switch strings.ToLower(n.Data) {
			case "script", "style", "noscript", "head", "title", "template":
				return
			}
		case html.TextNode:
			b.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}

		if n.Type == html.ElementNode && blockElements[strings.ToLower(n.Data)] {
			b.WriteByte(' ')
		}
	}
	extract(doc)

	return strings.Join(strings.Fields(b.String()), " ")
}
