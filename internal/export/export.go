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

// Package export writes enriched records to local files.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bcem/enrichment/internal/models"
	"github.com/bcem/enrichment/internal/normalize"
)

// CSVWriter writes one row per record with mode-specific columns. The file
// is replaced on every save.
type CSVWriter struct {
	Path       string
	MaxContent int // 0 = normalize.MaxContentLength
}

// Name identifies the sink in logs and reports.
func (w CSVWriter) Name() string {
	return "csv:" + w.Path
}

// Save writes the batch. Keywords are joined with ", " in a single column.
func (w CSVWriter) Save(ctx context.Context, mode models.Mode, records []models.EnrichedEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	header, row, err := columns(mode)
	if err != nil {
		return err
	}

	return writeAtomic(w.Path, func(f *os.File) error {
		cw := csv.NewWriter(f)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, rec := range records {
			if err := cw.Write(row(truncated(rec, w.MaxContent))); err != nil {
				return fmt.Errorf("write row for %s: %w", rec.ID, err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		slog.Info("saved enriched records to csv", "path", w.Path, "mode", mode, "count", len(records))
		return nil
	})
}

func columns(mode models.Mode) ([]string, func(models.EnrichedEmail) []string, error) {
	switch mode {
	case models.ModeSentiment:
		return []string{"id", "subject", "content", "sentiment"}, func(r models.EnrichedEmail) []string {
			return []string{r.ID, r.Subject, r.Content, r.Sentiment}
		}, nil
	case models.ModeKeywords:
		return []string{"id", "subject", "content", "keywords"}, func(r models.EnrichedEmail) []string {
			return []string{r.ID, r.Subject, r.Content, strings.Join(r.Keywords, ", ")}
		}, nil
	}
	return nil, nil, fmt.Errorf("csv export: unknown enrichment mode %q", mode)
}

// JSONWriter writes the batch as an indented JSON array.
type JSONWriter struct {
	Path       string
	MaxContent int // 0 = normalize.MaxContentLength
}

// Name identifies the sink in logs and reports.
func (w JSONWriter) Name() string {
	return "json:" + w.Path
}

// Save writes the batch, replacing any previous file.
func (w JSONWriter) Save(ctx context.Context, mode models.Mode, records []models.EnrichedEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := make([]models.EnrichedEmail, 0, len(records))
	for _, rec := range records {
		out = append(out, truncated(rec, w.MaxContent))
	}

	return writeAtomic(w.Path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode records: %w", err)
		}
		slog.Info("saved enriched records to json", "path", w.Path, "mode", mode, "count", len(records))
		return nil
	})
}

func truncated(rec models.EnrichedEmail, limit int) models.EnrichedEmail {
	rec.Content = normalize.Truncate(rec.Content, normalize.Limit(limit))
	return rec
}

// writeAtomic writes through a temp file in the target directory and
// renames it into place, so readers never see a partial file.
func writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
