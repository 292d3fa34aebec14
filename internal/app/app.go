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

// Package app assembles the enrichment job from configuration. Both the
// one-shot command and the long-running server use it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/enrichment/internal/config"
	"github.com/bcem/enrichment/internal/credentials"
	"github.com/bcem/enrichment/internal/dedup"
	"github.com/bcem/enrichment/internal/enrich"
	"github.com/bcem/enrichment/internal/export"
	"github.com/bcem/enrichment/internal/gmail"
	"github.com/bcem/enrichment/internal/inference"
	"github.com/bcem/enrichment/internal/job"
	"github.com/bcem/enrichment/internal/normalize"
	"github.com/bcem/enrichment/internal/queue"
	"github.com/bcem/enrichment/internal/source"
	"github.com/bcem/enrichment/internal/store"
)

// Pinger is a dependency the health check verifies.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App holds the assembled job and the connections it owns.
type App struct {
	Job     *job.Job
	Pingers map[string]Pinger

	closers []func()
}

// Options adjusts assembly for the calling entrypoint.
type Options struct {
	Progress io.Writer // progress bar output; nil discards it
}

// New connects to every configured backend and builds the job. Backends
// with an empty URL are left out.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Pingers: make(map[string]Pinger)}

	src, err := newSource(ctx, cfg.Mail)
	if err != nil {
		return nil, err
	}

	svc := inference.NewOpenAIService(inference.OpenAIConfig{
		APIKey:  cfg.Inference.APIKey,
		BaseURL: cfg.Inference.BaseURL,
		Model:   cfg.Inference.Model,
	})
	adapter := inference.NewAdapter(svc, inference.Config{
		SentimentMaxTokens: cfg.Inference.SentimentMaxTokens,
		KeywordMaxTokens:   cfg.Inference.KeywordMaxTokens,
		CallTimeout:        cfg.Inference.Timeout,
		MaxRetries:         cfg.Inference.MaxRetries,
		InitialBackoff:     cfg.Inference.InitialBackoff,
		MaxBackoff:         cfg.Inference.MaxBackoff,
		BreakerThreshold:   cfg.Inference.BreakerThreshold,
		BreakerCooldown:    cfg.Inference.BreakerCooldown,
	})

	// Sinks persist content under the same bound the pipeline applies.
	norm := normalize.New(cfg.Pipeline.MaxContentLength)
	maxContent := norm.MaxLen()

	runner := enrich.NewRunner(enrich.RunnerConfig{
		Pipeline: enrich.NewPipeline(adapter, norm),
		Workers:  cfg.Pipeline.Workers,
		Progress: opts.Progress,
	})

	var sinks []job.Sink
	if cfg.Output.CSVPath != "" {
		sinks = append(sinks, export.CSVWriter{Path: cfg.Output.CSVPath, MaxContent: maxContent})
	}
	if cfg.Output.JSONPath != "" {
		sinks = append(sinks, export.JSONWriter{Path: cfg.Output.JSONPath, MaxContent: maxContent})
	}

	var seen job.SeenFilter
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		a.closers = append(a.closers, func() { rdb.Close() })

		publisher := queue.NewPublisher(rdb, cfg.Queue, maxContent)
		if err := publisher.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to Redis: %w", err)
		}
		slog.Info("connected to Redis")

		a.Pingers["redis"] = publisher
		sinks = append(sinks, publisher)
		seen = dedup.NewFilter(rdb, cfg.DedupTTL)
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create Postgres pool: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		slog.Info("connected to PostgreSQL")

		st, err := store.NewStore(ctx, pool, maxContent)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Pingers["postgres"] = st
		sinks = append(sinks, st)
	}

	if len(sinks) == 0 {
		slog.Warn("no output configured, enriched records will only be counted")
	}

	a.Job = job.New(job.Config{
		Source: src,
		Query:  cfg.Mail.Query,
		Mode:   cfg.Pipeline.Mode,
		Runner: runner,
		Dedup:  seen,
		Sinks:  sinks,
	})
	return a, nil
}

func newSource(ctx context.Context, mail config.MailConfig) (job.EmailSource, error) {
	if mail.InputFile != "" {
		slog.Info("reading emails from file", "path", mail.InputFile)
		return source.FileSource{Path: mail.InputFile}, nil
	}

	httpClient, err := credentials.Client(ctx, mail.CredentialsFile, mail.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("build mail credentials: %w", err)
	}

	fetcher, err := gmail.NewFetcher(ctx, gmail.FetcherConfig{
		HTTPClient: httpClient,
		Endpoint:   mail.Endpoint,
		MaxResults: mail.MaxResults,
	})
	if err != nil {
		return nil, err
	}
	return fetcher, nil
}

// Close releases every connection in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
