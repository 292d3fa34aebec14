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

// Package inference wraps the external language-model service used to
// classify sentiment and extract travel keywords from email text.
package inference

import (
	"context"
	"errors"
)

var (
	// ErrPermanent marks failures that retrying cannot fix (auth, bad request).
	ErrPermanent = errors.New("permanent inference failure")
	// ErrEmptyResponse indicates the service returned no usable text.
	ErrEmptyResponse = errors.New("empty inference response")
)

// Prompt is a single system+user exchange. MaxTokens of zero leaves the
// output budget to the service default.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Service is the inference-service collaborator. Implementations return an
// error on auth failure, rate limiting, network failure or malformed
// requests; errors that must not be retried wrap ErrPermanent.
type Service interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}
