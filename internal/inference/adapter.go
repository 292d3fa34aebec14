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

package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

const (
	sentimentSystemPrompt = "You are a helpful assistant that analyzes email sentiment."
	sentimentUserPrompt   = "Analyze the sentiment of this email: "
	keywordSystemPrompt   = "You are a helpful assistant that extracts travel-related keywords from emails."
	keywordUserPrompt     = "Extract travel-related keywords from this email: "

	// DefaultSentimentMaxTokens keeps sentiment answers short.
	DefaultSentimentMaxTokens = 50
)

// Config controls output budgets and the failure policy around each call.
type Config struct {
	SentimentMaxTokens int
	KeywordMaxTokens   int // 0 = service default

	CallTimeout    time.Duration // per attempt; 0 = no timeout
	MaxRetries     int           // additional attempts after the first
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// BreakerThreshold is the number of consecutive service failures that
	// opens the circuit. Permanent rejections of a single request and caller
	// cancellation are not counted. 0 disables the breaker.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// Adapter turns service calls into the per-call failure policy the pipeline
// relies on: sentiment failures are returned, keyword failures degrade to an
// empty list.
type Adapter struct {
	svc     Service
	cfg     Config
	breaker *gobreaker.CircuitBreaker
}

// NewAdapter creates an adapter around svc.
func NewAdapter(svc Service, cfg Config) *Adapter {
	if cfg.SentimentMaxTokens <= 0 {
		cfg.SentimentMaxTokens = DefaultSentimentMaxTokens
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	a := &Adapter{svc: svc, cfg: cfg}

	if cfg.BreakerThreshold > 0 {
		a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "inference",
			Timeout: cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerThreshold
			},
			IsSuccessful: countsAsHealthy,
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("inference circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}

	return a
}

// ClassifySentiment asks for a short sentiment judgment of text.
func (a *Adapter) ClassifySentiment(ctx context.Context, emailID, text string) (string, error) {
	resp, err := a.complete(ctx, emailID, Prompt{
		System:    sentimentSystemPrompt,
		User:      sentimentUserPrompt + text,
		MaxTokens: a.cfg.SentimentMaxTokens,
	})
	if err == nil {
		resp = strings.TrimSpace(resp)
		if resp == "" {
			err = ErrEmptyResponse
		}
	}
	if err != nil {
		logFailure(ctx, "sentiment analysis failed", emailID, err)
		return "", fmt.Errorf("classify sentiment for %s: %w", emailID, err)
	}

	slog.Debug("sentiment classified", "email_id", emailID, "sentiment", resp)
	return resp, nil
}

// ExtractKeywords asks for comma-separated travel keywords. On failure the
// error is logged and an empty list returned.
func (a *Adapter) ExtractKeywords(ctx context.Context, emailID, text string) []string {
	resp, err := a.complete(ctx, emailID, Prompt{
		System:    keywordSystemPrompt,
		User:      keywordUserPrompt + text,
		MaxTokens: a.cfg.KeywordMaxTokens,
	})
	if err != nil {
		logFailure(ctx, "keyword extraction failed", emailID, err)
		return []string{}
	}

	keywords := SplitKeywords(resp)
	slog.Debug("keywords extracted", "email_id", emailID, "keywords", keywords)
	return keywords
}

// logFailure reports a failed call. Calls cut short by the caller are
// expected during shutdown and logged at info.
func logFailure(ctx context.Context, msg, emailID string, err error) {
	level := slog.LevelError
	if ctx.Err() != nil {
		level = slog.LevelInfo
	}
	slog.Log(ctx, level, msg, "email_id", emailID, "error", err)
}

// complete runs one logical call: each attempt has its own timeout and goes
// through the breaker; retryable failures back off exponentially.
func (a *Adapter) complete(ctx context.Context, emailID string, p Prompt) (string, error) {
	if a.cfg.MaxRetries <= 0 {
		return a.attempt(ctx, p)
	}

	var out string

	operation := func() error {
		resp, err := a.attempt(ctx, p)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrPermanent) || breakerRejected(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = resp
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.cfg.InitialBackoff
	eb.MaxInterval = a.cfg.MaxBackoff
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(a.cfg.MaxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		slog.Warn("inference call failed, retrying",
			"email_id", emailID,
			"error", err,
			"wait", wait,
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", err
	}
	return out, nil
}

func (a *Adapter) attempt(ctx context.Context, p Prompt) (string, error) {
	if a.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()
	}

	if a.breaker == nil {
		return a.svc.Complete(ctx, p)
	}

	resp, err := a.breaker.Execute(func() (interface{}, error) {
		return a.svc.Complete(ctx, p)
	})
	if err != nil {
		return "", err
	}
	return resp.(string), nil
}

// breakerRejected reports whether the breaker refused the call without
// reaching the service.
func breakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// countsAsHealthy decides which outcomes leave the breaker's failure count
// alone. A request the service rejected on its own merits, or one the caller
// abandoned, says nothing about the service being down.
func countsAsHealthy(err error) bool {
	return err == nil || errors.Is(err, ErrPermanent) || errors.Is(err, context.Canceled)
}
