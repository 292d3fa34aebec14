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

// Package queue publishes enriched records to a Redis list so downstream
// consumers can pick them up with BRPOP.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/enrichment/internal/models"
	"github.com/bcem/enrichment/internal/normalize"
)

// DefaultQueue is the list enriched records are pushed to.
const DefaultQueue = "enriched_emails"

// Publisher sends enriched records to a Redis list.
type Publisher struct {
	rdb        *redis.Client
	queueName  string
	maxContent int
}

// NewPublisher creates a new Redis publisher targeting the specified queue.
// Record content is cut to maxContent characters; 0 selects the default.
func NewPublisher(rdb *redis.Client, queueName string, maxContent int) *Publisher {
	if queueName == "" {
		queueName = DefaultQueue
	}
	return &Publisher{
		rdb:        rdb,
		queueName:  queueName,
		maxContent: normalize.Limit(maxContent),
	}
}

// Envelope is the message pushed per record.
type Envelope struct {
	ID          string               `json:"id"`
	Mode        models.Mode          `json:"mode"`
	PublishedAt string               `json:"published_at"`
	Record      models.EnrichedEmail `json:"record"`
}

// Name identifies the sink in logs and reports.
func (p *Publisher) Name() string {
	return "redis:" + p.queueName
}

// Save pushes one envelope per record in a single pipeline. Records keep
// their batch order: consumers popping from the right see the first record
// first.
func (p *Publisher) Save(ctx context.Context, mode models.Mode, records []models.EnrichedEmail) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	messages := make([]interface{}, 0, len(records))
	for _, rec := range records {
		rec.Content = normalize.Truncate(rec.Content, p.maxContent)

		data, err := json.Marshal(Envelope{
			ID:          uuid.New().String(),
			Mode:        mode,
			PublishedAt: now,
			Record:      rec,
		})
		if err != nil {
			return fmt.Errorf("marshal envelope for %s: %w", rec.ID, err)
		}
		messages = append(messages, string(data))
	}

	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, msg := range messages {
			pipe.LPush(ctx, p.queueName, msg)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published enriched records to queue",
		"queue", p.queueName,
		"mode", mode,
		"count", len(records),
	)
	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
