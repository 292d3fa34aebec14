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

// Package store provides a Postgres-backed store for enriched email records.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcem/enrichment/internal/models"
	"github.com/bcem/enrichment/internal/normalize"
)

// Record is an enriched email as persisted in Postgres.
type Record struct {
	EmailID   string
	Mode      models.Mode
	Subject   string
	Content   string
	Sentiment *string
	Keywords  []string
	UpdatedAt time.Time
}

// Store persists enriched records keyed on (email_id, mode).
type Store struct {
	pool       *pgxpool.Pool
	maxContent int
}

// NewStore creates a store backed by the given Postgres pool. It ensures the
// enriched_emails table exists on creation. Content is cut to maxContent
// characters; 0 selects the default.
func NewStore(ctx context.Context, pool *pgxpool.Pool, maxContent int) (*Store, error) {
	s := &Store{pool: pool, maxContent: normalize.Limit(maxContent)}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure enrichment schema: %w", err)
	}
	slog.Info("enrichment store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS enriched_emails (
			email_id   TEXT NOT NULL,
			mode       TEXT NOT NULL,
			subject    TEXT DEFAULT '',
			content    TEXT NOT NULL,
			sentiment  TEXT,
			keywords   TEXT[],
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (email_id, mode)
		);
		CREATE INDEX IF NOT EXISTS idx_enriched_mode ON enriched_emails(mode);
	`)
	return err
}

// Name identifies the sink in logs and reports.
func (s *Store) Name() string {
	return "postgres"
}

const upsertSQL = `
	INSERT INTO enriched_emails (email_id, mode, subject, content, sentiment, keywords)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (email_id, mode) DO UPDATE SET
		subject    = EXCLUDED.subject,
		content    = EXCLUDED.content,
		sentiment  = EXCLUDED.sentiment,
		keywords   = EXCLUDED.keywords,
		updated_at = NOW()
`

// Save upserts the batch in one round trip.
func (s *Store) Save(ctx context.Context, mode models.Mode, records []models.EnrichedEmail) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		row := toRecord(mode, rec, s.maxContent)
		batch.Queue(upsertSQL, row.EmailID, string(row.Mode), row.Subject, row.Content, row.Sentiment, row.Keywords)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, rec := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert enriched email %s: %w", rec.ID, err)
		}
	}

	slog.Info("saved enriched records to postgres", "mode", mode, "count", len(records))
	return nil
}

// get retrieves one record, or nil when absent.
func (s *Store) get(ctx context.Context, emailID string, mode models.Mode) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT email_id, mode, subject, content, sentiment, keywords, updated_at
		FROM enriched_emails
		WHERE email_id = $1 AND mode = $2
	`, emailID, string(mode))

	var r Record
	var m string
	err := row.Scan(&r.EmailID, &m, &r.Subject, &r.Content, &r.Sentiment, &r.Keywords, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Mode = models.Mode(m)
	return &r, nil
}

// Ping checks the Postgres connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// toRecord maps an enriched email onto its row. Sentiment is NULL for
// keyword runs and keywords NULL for sentiment runs.
func toRecord(mode models.Mode, rec models.EnrichedEmail, maxContent int) Record {
	r := Record{
		EmailID: rec.ID,
		Mode:    mode,
		Subject: rec.Subject,
		Content: normalize.Truncate(rec.Content, maxContent),
	}
	switch mode {
	case models.ModeSentiment:
		sentiment := rec.Sentiment
		r.Sentiment = &sentiment
	case models.ModeKeywords:
		r.Keywords = rec.Keywords
		if r.Keywords == nil {
			r.Keywords = []string{}
		}
	}
	return r
}
