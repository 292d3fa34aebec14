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
	"errors"
	"sync"
	"testing"
	"time"
)

type countingJob struct {
	mu    sync.Mutex
	runs  int
	fail  bool
	ranCh chan struct{}
}

func (c *countingJob) Run(ctx context.Context) (*Report, error) {
	c.mu.Lock()
	c.runs++
	n := c.runs
	fail := c.fail
	c.mu.Unlock()

	select {
	case c.ranCh <- struct{}{}:
	default:
	}

	if fail {
		return &Report{RunID: "failed"}, errors.New("fetch emails: boom")
	}
	return &Report{RunID: string(rune('0' + n)), Enriched: n}, nil
}

func waitRun(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduled run")
	}
}

// TestScheduler_RunsImmediatelyAndPeriodically verifies the loop and status.
func TestScheduler_RunsImmediatelyAndPeriodically(t *testing.T) {
	job := &countingJob{ranCh: make(chan struct{}, 1)}
	s := NewScheduler(job, 20*time.Millisecond)

	s.Start(context.Background())
	waitRun(t, job.ranCh)
	waitRun(t, job.ranCh)
	s.Stop()

	st := s.Status()
	if st.Runs < 2 {
		t.Errorf("Runs = %d, want >= 2", st.Runs)
	}
	if st.LastReport == nil || st.LastError != "" {
		t.Errorf("status = %+v", st)
	}
	if st.Interval != "20ms" {
		t.Errorf("Interval = %q", st.Interval)
	}
}

// TestScheduler_RecordsFailure verifies errors surface in the status.
func TestScheduler_RecordsFailure(t *testing.T) {
	job := &countingJob{fail: true, ranCh: make(chan struct{}, 1)}
	s := NewScheduler(job, time.Hour)

	s.Start(context.Background())
	waitRun(t, job.ranCh)
	s.Stop()

	st := s.Status()
	if st.LastError == "" {
		t.Error("expected last error to be recorded")
	}
	if st.LastReport == nil || st.LastReport.RunID != "failed" {
		t.Errorf("LastReport = %+v", st.LastReport)
	}
}

// TestScheduler_StopWithoutStart verifies Stop is safe before Start.
func TestScheduler_StopWithoutStart(t *testing.T) {
	s := NewScheduler(&countingJob{}, 0)
	s.Stop()
	if s.Status().Interval != "1h0m0s" {
		t.Errorf("default interval = %q", s.Status().Interval)
	}
}
