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

// Package payload extracts readable text from a message's multipart body.
package payload

import (
	"log/slog"
	"strings"

	"github.com/bcem/enrichment/internal/models"
)

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

// Extract returns the best available plain text for a message payload.
//
// The tree is walked depth-first in document order. The first non-empty
// text/plain leaf is returned verbatim; failing that, the first non-empty
// text/html leaf is stripped to text. Attachments are ignored. Extract never
// fails: absent, malformed, or text-less payloads yield "".
func Extract(emailID string, body *models.StructuredBody) string {
	if body == nil {
		slog.Debug("email has no payload", "email_id", emailID)
		return ""
	}
	if body.Malformed() {
		slog.Error("malformed message payload, no text extracted", "email_id", emailID)
		return ""
	}

	var plain, html *models.StructuredBody
	walk(emailID, body, func(part *models.StructuredBody) bool {
		switch mediaType(part.MimeType) {
		case mimeTextPlain:
			plain = part
			return false
		case mimeTextHTML:
			if html == nil {
				html = part
			}
		}
		return true
	})

	if plain != nil {
		return plain.Body.Data
	}
	if html != nil {
		return HTMLToText(html.Body.Data)
	}
	return ""
}

// walk visits every text-bearing leaf in document order until visit returns
// false. Containers are descended, attachments and malformed parts skipped.
func walk(emailID string, node *models.StructuredBody, visit func(*models.StructuredBody) bool) bool {
	if len(node.Parts) > 0 {
		for _, part := range node.Parts {
			if part == nil {
				continue
			}
			if part.Malformed() {
				slog.Warn("skipping malformed message part", "email_id", emailID)
				continue
			}
			if !walk(emailID, part, visit) {
				return false
			}
		}
		return true
	}

	if node.Filename != "" || node.Body == nil || node.Body.Data == "" {
		return true
	}
	return visit(node)
}

// mediaType lowercases a MIME type and drops any parameters.
func mediaType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
