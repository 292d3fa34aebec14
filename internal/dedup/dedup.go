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

// Package dedup remembers which emails have already been enriched per mode,
// using Redis keys with a TTL. Scheduled runs overlap the same search
// window, so without it every run would re-enrich the whole mailbox.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bcem/enrichment/internal/models"
)

const (
	// DefaultTTL is how long an enriched email ID is remembered.
	DefaultTTL = 7 * 24 * time.Hour

	// keyPrefix namespaces dedup keys in Redis.
	keyPrefix = "enrich:seen:"
)

// Filter tracks which email IDs have already been enriched.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a dedup filter backed by Redis. A non-positive ttl uses
// DefaultTTL.
func NewFilter(rdb *redis.Client, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Filter{
		rdb: rdb,
		ttl: ttl,
	}
}

func key(mode models.Mode, emailID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, mode, emailID)
}

// seen reports whether the email was already enriched in this mode.
func (f *Filter) seen(ctx context.Context, mode models.Mode, emailID string) (bool, error) {
	n, err := f.rdb.Exists(ctx, key(mode, emailID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup EXISTS: %w", err)
	}
	return n > 0, nil
}

// Unseen returns the subset of emailIDs not yet enriched in this mode,
// preserving order. One round trip regardless of batch size.
func (f *Filter) Unseen(ctx context.Context, mode models.Mode, emailIDs []string) ([]string, error) {
	if len(emailIDs) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.IntCmd, len(emailIDs))
	_, err := f.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range emailIDs {
			cmds[i] = pipe.Exists(ctx, key(mode, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dedup EXISTS pipeline: %w", err)
	}

	fresh := make([]string, 0, len(emailIDs))
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			fresh = append(fresh, emailIDs[i])
		}
	}
	return fresh, nil
}

// MarkSeen records the email IDs as enriched in this mode.
func (f *Filter) MarkSeen(ctx context.Context, mode models.Mode, emailIDs []string) error {
	if len(emailIDs) == 0 {
		return nil
	}

	_, err := f.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range emailIDs {
			pipe.Set(ctx, key(mode, id), 1, f.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("dedup SET pipeline: %w", err)
	}
	return nil
}
