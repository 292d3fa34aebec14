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

package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/enrichment/internal/dedup"
	"github.com/bcem/enrichment/internal/enrich"
	"github.com/bcem/enrichment/internal/models"
)

// --- Mocks ---

type mockSource struct {
	emails []models.RawEmail
	err    error
	query  string
}

func (m *mockSource) FetchEmails(_ context.Context, query string) ([]models.RawEmail, error) {
	m.query = query
	return m.emails, m.err
}

type mockAnalyzer struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (m *mockAnalyzer) ClassifySentiment(_ context.Context, id, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, id)
	if m.fail[id] {
		return "", errors.New("inference down")
	}
	return "Positive", nil
}

func (m *mockAnalyzer) ExtractKeywords(_ context.Context, id, _ string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, id)
	return []string{"Travel"}
}

func (m *mockAnalyzer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockSink struct {
	mu    sync.Mutex
	name  string
	err   error
	saved [][]models.EnrichedEmail
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Save(_ context.Context, _ models.Mode, records []models.EnrichedEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, records)
	return m.err
}

type brokenFilter struct{ marked int }

func (b *brokenFilter) Unseen(context.Context, models.Mode, []string) ([]string, error) {
	return nil, errors.New("redis down")
}

func (b *brokenFilter) MarkSeen(_ context.Context, _ models.Mode, ids []string) error {
	b.marked += len(ids)
	return errors.New("redis down")
}

func emails(ids ...string) []models.RawEmail {
	out := make([]models.RawEmail, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.RawEmail{ID: id, Snippet: "Booking " + id})
	}
	return out
}

func newJob(src EmailSource, analyzer enrich.Analyzer, mode models.Mode, seen SeenFilter, sinks ...Sink) *Job {
	runner := enrich.NewRunner(enrich.RunnerConfig{Pipeline: enrich.NewPipeline(analyzer, nil)})
	return New(Config{
		Source: src,
		Query:  "travel",
		Mode:   mode,
		Runner: runner,
		Dedup:  seen,
		Sinks:  sinks,
	})
}

func newDedup(t *testing.T) *dedup.Filter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return dedup.NewFilter(rdb, 0)
}

// TestJob_Run verifies the happy path reaches every sink.
func TestJob_Run(t *testing.T) {
	src := &mockSource{emails: emails("1", "2", "3")}
	analyzer := &mockAnalyzer{fail: map[string]bool{"2": true}}
	a, b := &mockSink{name: "a"}, &mockSink{name: "b"}

	report, err := newJob(src, analyzer, models.ModeSentiment, nil, a, b).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if src.query != "travel" {
		t.Errorf("query = %q", src.query)
	}
	if report.Fetched != 3 || report.Fresh != 3 || report.Enriched != 2 || report.Skipped != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.RunID == "" || report.Mode != models.ModeSentiment {
		t.Errorf("report identity = %+v", report)
	}
	for _, s := range []*mockSink{a, b} {
		if len(s.saved) != 1 || len(s.saved[0]) != 2 {
			t.Errorf("sink %s saved %v", s.name, s.saved)
		}
	}
}

// TestJob_FetchFailure verifies a source error aborts the run.
func TestJob_FetchFailure(t *testing.T) {
	src := &mockSource{err: errors.New("401 unauthorized")}
	analyzer := &mockAnalyzer{}
	sink := &mockSink{name: "a"}

	_, err := newJob(src, analyzer, models.ModeKeywords, nil, sink).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "fetch emails") {
		t.Fatalf("err = %v, want fetch failure", err)
	}
	if analyzer.callCount() != 0 || len(sink.saved) != 0 {
		t.Error("nothing should run after a fetch failure")
	}
}

// TestJob_SinkFailureContinues verifies one failing sink does not stop the others.
func TestJob_SinkFailureContinues(t *testing.T) {
	src := &mockSource{emails: emails("1")}
	bad := &mockSink{name: "bad", err: errors.New("disk full")}
	good := &mockSink{name: "good"}

	report, err := newJob(src, &mockAnalyzer{}, models.ModeKeywords, nil, bad, good).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.PersistFailures != 1 {
		t.Errorf("PersistFailures = %d, want 1", report.PersistFailures)
	}
	if len(good.saved) != 1 {
		t.Error("good sink should still receive the batch")
	}
}

// TestJob_Dedup verifies only enriched emails are remembered between runs.
func TestJob_Dedup(t *testing.T) {
	seen := newDedup(t)
	src := &mockSource{emails: append(emails("1", "2", "3"), models.RawEmail{Snippet: "no id"})}
	analyzer := &mockAnalyzer{fail: map[string]bool{"2": true}}
	j := newJob(src, analyzer, models.ModeSentiment, seen)

	first, err := j.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Fresh != 4 || first.Enriched != 3 {
		t.Errorf("first report = %+v", first)
	}

	analyzer.fail = nil
	second, err := j.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	// "2" failed before and the id-less email is never remembered
	if second.Fresh != 2 || second.Enriched != 2 {
		t.Errorf("second report = %+v", second)
	}

	other := newJob(src, analyzer, models.ModeKeywords, seen)
	third, err := other.Run(context.Background())
	if err != nil {
		t.Fatalf("keyword run: %v", err)
	}
	if third.Fresh != 4 {
		t.Errorf("dedup should be per mode, got fresh = %d", third.Fresh)
	}
}

// TestJob_DedupUnavailable verifies the run proceeds without the filter.
func TestJob_DedupUnavailable(t *testing.T) {
	src := &mockSource{emails: emails("1", "2")}
	filter := &brokenFilter{}

	report, err := newJob(src, &mockAnalyzer{}, models.ModeKeywords, filter).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Fresh != 2 || report.Enriched != 2 {
		t.Errorf("report = %+v", report)
	}
	if filter.marked != 2 {
		t.Errorf("marked = %d, want 2", filter.marked)
	}
}

// TestJob_Cancelled verifies cancellation is reported and nothing is persisted.
func TestJob_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &mockSink{name: "a"}
	report, err := newJob(&mockSource{emails: emails("1")}, &mockAnalyzer{}, models.ModeSentiment, nil, sink).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if report == nil || report.Skipped != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(sink.saved) != 0 {
		t.Error("cancelled run should not persist")
	}
}
