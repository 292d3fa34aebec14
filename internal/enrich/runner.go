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

package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"

	"github.com/bcem/enrichment/internal/models"
)

// BatchResult summarises one batch run.
type BatchResult struct {
	Mode    models.Mode
	Total   int
	Records []models.EnrichedEmail // surviving emails, in input order
	Skipped []SkippedItem
	Elapsed time.Duration
}

// SkippedItem records an email that produced no record.
type SkippedItem struct {
	Index   int
	EmailID string
	Reason  SkipReason
	Err     error
}

// Runner drives a batch of emails through the pipeline.
type Runner struct {
	pipeline *Pipeline
	workers  int
	progress io.Writer
}

// RunnerConfig holds the configuration for a Runner.
type RunnerConfig struct {
	Pipeline *Pipeline
	Workers  int       // <= 1 processes emails sequentially
	Progress io.Writer // progress bar output; nil discards it
}

// NewRunner creates a batch runner.
func NewRunner(cfg RunnerConfig) *Runner {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	progress := cfg.Progress
	if progress == nil {
		progress = io.Discard
	}
	return &Runner{
		pipeline: cfg.Pipeline,
		workers:  workers,
		progress: progress,
	}
}

// Run enriches emails and aggregates the surviving records in input order.
// Individual failures never fail the run. An error is returned only for an
// invalid mode or a cancelled context; in the latter case the partial result
// is returned alongside it.
func (r *Runner) Run(ctx context.Context, emails []models.RawEmail, mode models.Mode) (*BatchResult, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("run batch: unknown enrichment mode %q", mode)
	}

	start := time.Now()

	slog.Info("starting enrichment batch",
		"mode", mode,
		"emails", len(emails),
		"workers", r.workers,
	)

	bar := progressbar.NewOptions(len(emails),
		progressbar.OptionSetWriter(r.progress),
		progressbar.OptionSetDescription("Processing emails"),
		progressbar.OptionShowCount(),
	)

	results := make([]Result, len(emails))
	process := func(i int) {
		results[i] = r.pipeline.EnrichOne(ctx, emails[i], mode)
		bar.Add(1)
		slog.Debug("email processed",
			"email_id", emails[i].Identifier(),
			"index", i,
			"total", len(emails),
		)
	}

	if r.workers == 1 {
		for i := range emails {
			process(i)
		}
	} else {
		// Results land in their input slot, so completion order is irrelevant.
		wp := workerpool.New(r.workers)
		for i := range emails {
			i := i
			wp.Submit(func() { process(i) })
		}
		wp.StopWait()
	}
	bar.Finish()

	result := &BatchResult{
		Mode:    mode,
		Total:   len(emails),
		Records: make([]models.EnrichedEmail, 0, len(emails)),
	}
	for i, res := range results {
		if res.OK() {
			result.Records = append(result.Records, res.Record)
			continue
		}
		result.Skipped = append(result.Skipped, SkippedItem{
			Index:   i,
			EmailID: emails[i].Identifier(),
			Reason:  res.Skip,
			Err:     res.Err,
		})
	}
	result.Elapsed = time.Since(start)

	slog.Info("enrichment batch complete",
		"mode", mode,
		"total", result.Total,
		"enriched", len(result.Records),
		"skipped", len(result.Skipped),
		"elapsed", result.Elapsed,
	)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("run batch: %w", err)
	}
	return result, nil
}
