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

// Package gmail provides a message fetcher that retrieves emails matching a
// search query from the Gmail API using the official client library.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/bcem/enrichment/internal/models"
)

const (
	user = "me"

	// DefaultMaxResults caps how many messages one fetch returns.
	DefaultMaxResults = 100
)

var errPageLimit = errors.New("page limit reached")

// Fetcher retrieves full email messages from the Gmail API.
type Fetcher struct {
	svc        *gmail.Service
	maxResults int
}

// FetcherConfig holds the configuration for a Fetcher.
type FetcherConfig struct {
	HTTPClient *http.Client // authorised client, see package credentials
	Endpoint   string       // empty = production API
	MaxResults int
}

// NewFetcher creates a Gmail message fetcher.
func NewFetcher(ctx context.Context, cfg FetcherConfig) (*Fetcher, error) {
	opts := []option.ClientOption{option.WithHTTPClient(cfg.HTTPClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	return &Fetcher{svc: svc, maxResults: maxResults}, nil
}

// FetchEmails lists the messages matching query and retrieves each one in
// full. Any API failure aborts the fetch.
func (f *Fetcher) FetchEmails(ctx context.Context, query string) ([]models.RawEmail, error) {
	slog.Info("fetching emails", "query", query, "max_results", f.maxResults)

	ids, err := f.listIDs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	emails := make([]models.RawEmail, 0, len(ids))
	for _, id := range ids {
		msg, err := f.svc.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", id, err)
		}
		emails = append(emails, parseMessage(msg))
	}

	slog.Info("fetched emails", "count", len(emails))
	return emails, nil
}

// listIDs pages through the message list until it is exhausted or the
// result cap is reached.
func (f *Fetcher) listIDs(ctx context.Context, query string) ([]string, error) {
	var ids []string

	call := f.svc.Users.Messages.List(user).MaxResults(int64(f.maxResults))
	if query != "" {
		call = call.Q(query)
	}

	err := call.Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
			if len(ids) >= f.maxResults {
				return errPageLimit
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errPageLimit) {
		return nil, err
	}
	return ids, nil
}
