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

package job

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runnable is one unit of scheduled work. Implemented by Job.
type Runnable interface {
	Run(ctx context.Context) (*Report, error)
}

// Status is the scheduler state exposed on the status endpoint.
type Status struct {
	Interval   string  `json:"interval"`
	Runs       int     `json:"runs"`
	LastReport *Report `json:"last_report,omitempty"`
	LastError  string  `json:"last_error,omitempty"`
}

// Scheduler runs a job immediately and then at a fixed interval.
type Scheduler struct {
	job      Runnable
	interval time.Duration

	mu         sync.RWMutex
	runs       int
	lastReport *Report
	lastErr    error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. A non-positive interval defaults to one hour.
func NewScheduler(job Runnable, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{job: job, interval: interval}
}

// Start launches the loop in the background.
func (s *Scheduler) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.runOnce(loopCtx)
			}
		}
	}()

	slog.Info("enrichment scheduler started", "interval", s.interval)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.job.Run(ctx)
	if err != nil {
		slog.Error("scheduled enrichment run failed", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.lastErr = err
	if report != nil {
		s.lastReport = report
	}
}

// Stop shuts down the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Interval:   s.interval.String(),
		Runs:       s.runs,
		LastReport: s.lastReport,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
