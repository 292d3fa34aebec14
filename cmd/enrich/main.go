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

// Email Enrichment: One-shot Command
//
// Fetches emails matching a search query (or reads them from a JSON file),
// enriches each with a sentiment judgment or travel keywords, and writes the
// results to the configured outputs.
//
// Usage:
//
//	go run ./cmd/enrich/ [-mode sentiment|keywords] [-query "..."] [-input emails.json] [-csv out.csv] [-json out.json]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bcem/enrichment/internal/app"
	"github.com/bcem/enrichment/internal/config"
	"github.com/bcem/enrichment/internal/models"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	modeFlag := flag.String("mode", "", "Enrichment mode: sentiment or keywords (default from config)")
	queryFlag := flag.String("query", "", "Mail search query (default from config)")
	inputFlag := flag.String("input", "", "Read emails from a JSON file instead of the mailbox")
	csvFlag := flag.String("csv", "", "Write results to this CSV file")
	jsonFlag := flag.String("json", "", "Write results to this JSON file")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if *modeFlag != "" {
		mode, err := models.ParseMode(*modeFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			flag.Usage()
			os.Exit(1)
		}
		cfg.Pipeline.Mode = mode
	}
	if *queryFlag != "" {
		cfg.Mail.Query = *queryFlag
	}
	if *inputFlag != "" {
		cfg.Mail.InputFile = *inputFlag
	}
	if *csvFlag != "" {
		cfg.Output.CSVPath = *csvFlag
	}
	if *jsonFlag != "" {
		cfg.Output.JSONPath = *jsonFlag
	}

	slog.Info("starting enrichment run",
		"mode", cfg.Pipeline.Mode,
		"query", cfg.Mail.Query,
		"workers", cfg.Pipeline.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{Progress: os.Stderr})
	if err != nil {
		slog.Error("failed to initialise", "error", err)
		os.Exit(1)
	}

	report, err := a.Job.Run(ctx)
	a.Close()
	if err != nil {
		slog.Error("enrichment run failed", "error", err)
		os.Exit(1)
	}

	// --- Summary ---
	slog.Info("enrichment complete",
		"run_id", report.RunID,
		"fetched", report.Fetched,
		"enriched", report.Enriched,
		"skipped", report.Skipped,
		"persist_failures", report.PersistFailures,
		"elapsed", report.Elapsed,
	)
}
