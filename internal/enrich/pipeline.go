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

// Package enrich runs raw emails through extraction, normalization and
// inference, producing one enriched record per surviving email.
package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bcem/enrichment/internal/models"
	"github.com/bcem/enrichment/internal/normalize"
	"github.com/bcem/enrichment/internal/payload"
)

// Analyzer is the inference capability the pipeline needs. Implemented by
// inference.Adapter.
type Analyzer interface {
	ClassifySentiment(ctx context.Context, emailID, text string) (string, error)
	ExtractKeywords(ctx context.Context, emailID, text string) []string
}

// SkipReason explains why an email produced no record.
type SkipReason string

const (
	SkipUnsupportedContent SkipReason = "unsupported_content"
	SkipInferenceFailed    SkipReason = "inference_failed"
	SkipCancelled          SkipReason = "cancelled"
	SkipUnexpected         SkipReason = "unexpected_error"
)

// Result is the outcome of enriching one email: either a Record, or a Skip
// reason with the underlying error.
type Result struct {
	Record models.EnrichedEmail
	Skip   SkipReason
	Err    error
}

// OK reports whether the email produced a record.
func (r Result) OK() bool {
	return r.Skip == ""
}

func skipped(reason SkipReason, err error) Result {
	return Result{Skip: reason, Err: err}
}

// Pipeline enriches a single email at a time.
type Pipeline struct {
	analyzer   Analyzer
	normalizer *normalize.Normalizer
}

// NewPipeline creates a pipeline. A nil normalizer uses the default limit.
func NewPipeline(analyzer Analyzer, normalizer *normalize.Normalizer) *Pipeline {
	if normalizer == nil {
		normalizer = normalize.New(0)
	}
	return &Pipeline{
		analyzer:   analyzer,
		normalizer: normalizer,
	}
}

// EnrichOne runs extract → normalize → infer for one email. It never panics
// and never returns an error: every failure becomes a skipped Result.
func (p *Pipeline) EnrichOne(ctx context.Context, email models.RawEmail, mode models.Mode) (res Result) {
	id := email.Identifier()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("unexpected failure enriching email",
				"email_id", id,
				"mode", mode,
				"error", r,
			)
			res = skipped(SkipUnexpected, fmt.Errorf("enrich email %s: %v", id, r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return skipped(SkipCancelled, err)
	}

	content, err := p.content(email)
	if err != nil {
		slog.Warn("skipping email due to invalid content type",
			"email_id", id,
			"error", err,
		)
		return skipped(SkipUnsupportedContent, err)
	}

	record := models.EnrichedEmail{
		ID:      id,
		Subject: email.Subject,
		Content: content,
	}

	switch mode {
	case models.ModeSentiment:
		sentiment, err := p.analyzer.ClassifySentiment(ctx, id, content)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return skipped(SkipCancelled, ctxErr)
			}
			return skipped(SkipInferenceFailed, err)
		}
		record.Sentiment = sentiment
	case models.ModeKeywords:
		record.Keywords = p.analyzer.ExtractKeywords(ctx, id, content)
		if record.Keywords == nil {
			record.Keywords = []string{}
		}
	default:
		return skipped(SkipUnexpected, fmt.Errorf("unknown enrichment mode %q", mode))
	}

	return Result{Record: record}
}

// content picks the text source for an email and normalizes it. A non-empty
// snippet wins, then content, then body, then payload extraction.
func (p *Pipeline) content(email models.RawEmail) (string, error) {
	if email.Snippet != "" {
		return p.normalizer.NormalizeText(email.Snippet), nil
	}
	if email.Content.Present() {
		return p.normalizer.Normalize(email.Content)
	}
	if email.Body.Present() {
		return p.normalizer.Normalize(email.Body)
	}
	return p.normalizer.NormalizeText(payload.Extract(email.Identifier(), email.Payload)), nil
}
