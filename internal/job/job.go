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

// Package job wires a mail source, the batch runner and the persistence
// sinks into a single enrichment run.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bcem/enrichment/internal/enrich"
	"github.com/bcem/enrichment/internal/models"
)

// EmailSource yields the raw emails for a run. Implemented by gmail.Fetcher
// and source.FileSource.
type EmailSource interface {
	FetchEmails(ctx context.Context, query string) ([]models.RawEmail, error)
}

// SeenFilter remembers emails already enriched. Implemented by dedup.Filter.
type SeenFilter interface {
	Unseen(ctx context.Context, mode models.Mode, emailIDs []string) ([]string, error)
	MarkSeen(ctx context.Context, mode models.Mode, emailIDs []string) error
}

// Sink persists a batch of enriched records.
type Sink interface {
	Name() string
	Save(ctx context.Context, mode models.Mode, records []models.EnrichedEmail) error
}

// Report summarises one run.
type Report struct {
	RunID           string        `json:"run_id"`
	Mode            models.Mode   `json:"mode"`
	StartedAt       time.Time     `json:"started_at"`
	Fetched         int           `json:"fetched"`
	Fresh           int           `json:"fresh"`
	Enriched        int           `json:"enriched"`
	Skipped         int           `json:"skipped"`
	PersistFailures int           `json:"persist_failures"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Job runs fetch → dedup → enrich → persist → mark seen.
type Job struct {
	source EmailSource
	query  string
	mode   models.Mode
	runner *enrich.Runner
	seen   SeenFilter
	sinks  []Sink
}

// Config holds the collaborators for a Job.
type Config struct {
	Source EmailSource
	Query  string
	Mode   models.Mode
	Runner *enrich.Runner
	Dedup  SeenFilter // nil disables deduplication
	Sinks  []Sink
}

// New creates a job.
func New(cfg Config) *Job {
	return &Job{
		source: cfg.Source,
		query:  cfg.Query,
		mode:   cfg.Mode,
		runner: cfg.Runner,
		seen:   cfg.Dedup,
		sinks:  cfg.Sinks,
	}
}

// Run executes one enrichment run. A fetch failure or cancellation is
// returned as an error; per-email and per-sink failures are only counted.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:     uuid.New().String(),
		Mode:      j.mode,
		StartedAt: start.UTC(),
	}
	log := slog.With("run_id", report.RunID, "mode", j.mode)

	emails, err := j.source.FetchEmails(ctx, j.query)
	if err != nil {
		return report, fmt.Errorf("fetch emails: %w", err)
	}
	report.Fetched = len(emails)

	emails = j.filterSeen(ctx, log, emails)
	report.Fresh = len(emails)

	result, err := j.runner.Run(ctx, emails, j.mode)
	if result != nil {
		report.Enriched = len(result.Records)
		report.Skipped = len(result.Skipped)
	}
	if err != nil {
		report.Elapsed = time.Since(start)
		return report, fmt.Errorf("enrich emails: %w", err)
	}

	for _, sink := range j.sinks {
		if err := sink.Save(ctx, j.mode, result.Records); err != nil {
			report.PersistFailures++
			log.Error("failed to persist enriched records",
				"sink", sink.Name(),
				"records", len(result.Records),
				"error", err,
			)
		}
	}

	j.markSeen(ctx, log, result.Records)

	report.Elapsed = time.Since(start)
	log.Info("enrichment run complete",
		"fetched", report.Fetched,
		"fresh", report.Fresh,
		"enriched", report.Enriched,
		"skipped", report.Skipped,
		"persist_failures", report.PersistFailures,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// filterSeen drops emails already enriched in this mode. Emails without an
// ID always pass. If the filter is unavailable the whole batch passes.
func (j *Job) filterSeen(ctx context.Context, log *slog.Logger, emails []models.RawEmail) []models.RawEmail {
	if j.seen == nil || len(emails) == 0 {
		return emails
	}

	var ids []string
	for _, e := range emails {
		if e.ID != "" {
			ids = append(ids, e.ID)
		}
	}

	fresh, err := j.seen.Unseen(ctx, j.mode, ids)
	if err != nil {
		log.Warn("dedup check failed, enriching full batch", "error", err)
		return emails
	}

	keep := make(map[string]bool, len(fresh))
	for _, id := range fresh {
		keep[id] = true
	}

	out := make([]models.RawEmail, 0, len(emails))
	for _, e := range emails {
		if e.ID == "" || keep[e.ID] {
			out = append(out, e)
		}
	}
	if dropped := len(emails) - len(out); dropped > 0 {
		log.Info("skipping already enriched emails", "count", dropped)
	}
	return out
}

// markSeen records the enriched IDs so the next run skips them. Skipped
// emails are left unmarked and get retried.
func (j *Job) markSeen(ctx context.Context, log *slog.Logger, records []models.EnrichedEmail) {
	if j.seen == nil {
		return
	}

	var ids []string
	for _, r := range records {
		if r.ID != models.UnknownID {
			ids = append(ids, r.ID)
		}
	}
	if err := j.seen.MarkSeen(ctx, j.mode, ids); err != nil {
		log.Warn("failed to mark emails as enriched", "count", len(ids), "error", err)
	}
}
