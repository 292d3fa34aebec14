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

package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bcem/enrichment/internal/models"
	"github.com/bcem/enrichment/internal/normalize"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

// TestCSVWriter_Keywords verifies columns and keyword joining.
func TestCSVWriter_Keywords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := CSVWriter{Path: path}

	records := []models.EnrichedEmail{
		{ID: "1", Subject: "Trip, booked", Content: "Flight to X", Keywords: []string{"Travel", "Flight", "X"}},
		{ID: "2", Content: "nothing", Keywords: []string{}},
	}
	if err := w.Save(context.Background(), models.ModeKeywords, records); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], "|") != "id|subject|content|keywords" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "Trip, booked" || rows[1][3] != "Travel, Flight, X" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][3] != "" {
		t.Errorf("row 2 keywords = %q, want empty", rows[2][3])
	}
}

// TestCSVWriter_SentimentTruncates verifies sentiment columns and content truncation.
func TestCSVWriter_SentimentTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := CSVWriter{Path: path}

	records := []models.EnrichedEmail{
		{ID: "1", Content: strings.Repeat("é", normalize.MaxContentLength+1), Sentiment: "Positive"},
	}
	if err := w.Save(context.Background(), models.ModeSentiment, records); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rows := readCSV(t, path)
	if strings.Join(rows[0], "|") != "id|subject|content|sentiment" {
		t.Errorf("header = %v", rows[0])
	}
	if n := len([]rune(rows[1][2])); n != normalize.MaxContentLength {
		t.Errorf("content runes = %d, want %d", n, normalize.MaxContentLength)
	}
	if rows[1][3] != "Positive" {
		t.Errorf("sentiment = %q", rows[1][3])
	}
}

// TestWriters_ConfiguredBound verifies both file writers keep content up to
// a bound above the default.
func TestWriters_ConfiguredBound(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("a", 5000)
	records := []models.EnrichedEmail{{ID: "1", Content: content + "cut", Sentiment: "Neutral"}}

	csvPath := filepath.Join(dir, "out.csv")
	if err := (CSVWriter{Path: csvPath, MaxContent: 5000}).Save(context.Background(), models.ModeSentiment, records); err != nil {
		t.Fatalf("csv Save: %v", err)
	}
	if rows := readCSV(t, csvPath); rows[1][2] != content {
		t.Errorf("csv content length = %d, want 5000", len(rows[1][2]))
	}

	jsonPath := filepath.Join(dir, "out.json")
	if err := (JSONWriter{Path: jsonPath, MaxContent: 5000}).Save(context.Background(), models.ModeSentiment, records); err != nil {
		t.Fatalf("json Save: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got []models.EnrichedEmail
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
	if got[0].Content != content {
		t.Errorf("json content length = %d, want 5000", len(got[0].Content))
	}
}

// TestCSVWriter_Errors verifies invalid mode and unwritable paths fail.
func TestCSVWriter_Errors(t *testing.T) {
	dir := t.TempDir()

	if err := (CSVWriter{Path: filepath.Join(dir, "x.csv")}).Save(context.Background(), models.Mode("bogus"), nil); err == nil {
		t.Error("expected error for unknown mode")
	}
	if err := (CSVWriter{Path: filepath.Join(dir, "missing", "x.csv")}).Save(context.Background(), models.ModeSentiment, nil); err == nil {
		t.Error("expected error for missing directory")
	}
}

// TestJSONWriter_Save verifies the array shape and replacement semantics.
func TestJSONWriter_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w := JSONWriter{Path: path}

	if err := w.Save(context.Background(), models.ModeKeywords, []models.EnrichedEmail{
		{ID: "old", Content: "x", Keywords: []string{"a"}},
	}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := w.Save(context.Background(), models.ModeKeywords, []models.EnrichedEmail{
		{ID: "1", Content: "Hello world", Keywords: []string{}},
	}); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got []map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["id"] != "1" {
		t.Fatalf("records = %v", got)
	}
	kw, ok := got[0]["keywords"].([]interface{})
	if !ok || len(kw) != 0 {
		t.Errorf("keywords = %#v, want []", got[0]["keywords"])
	}
	if _, ok := got[0]["sentiment"]; ok {
		t.Error("keyword record should omit sentiment")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}
