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

package gmail

import (
	"encoding/base64"
	"log/slog"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/bcem/enrichment/internal/models"
)

// parseMessage converts a Gmail API message into a RawEmail.
func parseMessage(msg *gmail.Message) models.RawEmail {
	email := models.RawEmail{
		ID:      msg.Id,
		Snippet: msg.Snippet,
	}
	if msg.Payload != nil {
		email.Subject = header(msg.Payload, "Subject")
		email.Payload = convertPart(msg.Id, msg.Payload)
	}
	return email
}

// convertPart maps a message part tree onto StructuredBody, decoding leaf
// data so downstream extraction sees plain text.
func convertPart(msgID string, part *gmail.MessagePart) *models.StructuredBody {
	node := &models.StructuredBody{
		MimeType: part.MimeType,
		Filename: part.Filename,
	}

	if part.Body != nil {
		node.Body = &models.PartBody{Size: part.Body.Size}
		if part.Body.Data != "" {
			data, err := decodeData(part.Body.Data)
			if err != nil {
				slog.Warn("undecodable part body",
					"email_id", msgID,
					"mime_type", part.MimeType,
					"error", err,
				)
				return models.MalformedBody()
			}
			node.Body.Data = data
		}
	}

	for _, child := range part.Parts {
		if child == nil {
			continue
		}
		node.Parts = append(node.Parts, convertPart(msgID, child))
	}
	return node
}

// decodeData decodes base64url body data, with or without padding.
func decodeData(s string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return "", err
		}
	}
	return string(b), nil
}

// header returns the first value of the named header, case-insensitively.
func header(part *gmail.MessagePart, name string) string {
	for _, h := range part.Headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
