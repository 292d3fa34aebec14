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

// Package models defines the data structures shared across the enrichment service.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// UnknownID is reported for emails that arrive without an identifier.
const UnknownID = "unknown"

// PartBody holds the leaf data of a message part. Data is already decoded
// plain text by the time it reaches the pipeline.
type PartBody struct {
	Data string `json:"data,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// StructuredBody is a node in a message's multipart tree. A node is either a
// leaf carrying Body data or a container with Parts; callers must not assume
// both are populated.
type StructuredBody struct {
	MimeType string            `json:"mimeType"`
	Filename string            `json:"filename,omitempty"`
	Body     *PartBody         `json:"body,omitempty"`
	Parts    []*StructuredBody `json:"parts,omitempty"`

	malformed bool
}

// structuredBodyJSON breaks the UnmarshalJSON recursion.
type structuredBodyJSON StructuredBody

// UnmarshalJSON never fails. Anything that is not a well-formed object is
// recorded as malformed so extraction can recover locally.
func (b *StructuredBody) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		*b = StructuredBody{malformed: true}
		return nil
	}

	var raw structuredBodyJSON
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		*b = StructuredBody{malformed: true}
		return nil
	}
	*b = StructuredBody(raw)
	return nil
}

// Malformed reports whether the node failed to decode as a structured body.
func (b *StructuredBody) Malformed() bool {
	return b != nil && b.malformed
}

// MalformedBody returns a node flagged as malformed, for sources that detect
// a bad part while converting it.
func MalformedBody() *StructuredBody {
	return &StructuredBody{malformed: true}
}

// RawEmail is an email as delivered by the mail-fetch collaborator. It is
// never mutated by the pipeline.
type RawEmail struct {
	ID      string          `json:"id"`
	Subject string          `json:"subject,omitempty"`
	Snippet string          `json:"snippet,omitempty"`
	Content Content         `json:"content"`
	Body    Content         `json:"body"`
	Payload *StructuredBody `json:"payload,omitempty"`
}

// Identifier returns the email ID, or UnknownID when it is missing.
func (e RawEmail) Identifier() string {
	if e.ID == "" {
		return UnknownID
	}
	return e.ID
}

// EnrichedEmail is the terminal artifact of the pipeline.
//
// Keywords is empty (not nil) for keyword runs whose inference failed.
// Sentiment is only populated for sentiment runs.
type EnrichedEmail struct {
	ID        string   `json:"id"`
	Subject   string   `json:"subject,omitempty"`
	Content   string   `json:"content"`
	Sentiment string   `json:"sentiment,omitempty"`
	Keywords  []string `json:"keywords"`
}

// DecodeEmails reads a batch of raw emails from a JSON array. A top-level
// value that is not an array of objects is a precondition violation.
func DecodeEmails(r io.Reader) ([]RawEmail, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read emails: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("decode emails: expected a JSON array")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("decode emails: %w", err)
	}

	emails := make([]RawEmail, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return nil, fmt.Errorf("decode emails: item %d is not an object", i)
		}
		var e RawEmail
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, fmt.Errorf("decode emails: item %d: %w", i, err)
		}
		emails = append(emails, e)
	}

	return emails, nil
}
