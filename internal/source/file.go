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

// Package source provides email sources other than the live mailbox.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bcem/enrichment/internal/models"
)

// FileSource reads a previously exported batch of raw emails from a JSON
// file holding an array of message objects. The query is ignored.
type FileSource struct {
	Path string
}

// FetchEmails decodes the file. A top-level shape other than an array of
// objects is an error.
func (s FileSource) FetchEmails(ctx context.Context, _ string) ([]models.RawEmail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", s.Path, err)
	}
	defer f.Close()

	emails, err := models.DecodeEmails(f)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", s.Path, err)
	}

	slog.Info("loaded emails from file", "path", s.Path, "count", len(emails))
	return emails, nil
}
