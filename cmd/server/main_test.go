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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/bcem/enrichment/internal/app"
	"github.com/bcem/enrichment/internal/job"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeStatus struct{ st job.Status }

func (f fakeStatus) Status() job.Status { return f.st }

// TestHealth verifies each dependency is checked.
func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		pingers map[string]app.Pinger
		status  int
		body    string
	}{
		{"no dependencies", nil, http.StatusOK, "healthy"},
		{"all up", map[string]app.Pinger{"redis": fakePinger{}, "postgres": fakePinger{}}, http.StatusOK, "healthy"},
		{"redis down", map[string]app.Pinger{"redis": fakePinger{err: errors.New("refused")}}, http.StatusServiceUnavailable, "redis unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newMux(tt.pingers, fakeStatus{})
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.body)
			}
		})
	}
}

// TestStatus verifies the scheduler snapshot is served as JSON.
func TestStatus(t *testing.T) {
	st := job.Status{
		Interval:   "1h0m0s",
		Runs:       3,
		LastReport: &job.Report{RunID: "run-1", Mode: "keywords", Enriched: 7},
	}
	mux := newMux(nil, fakeStatus{st: st})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var got job.Status
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Runs != 3 || got.LastReport == nil || got.LastReport.RunID != "run-1" || got.LastReport.Enriched != 7 {
		t.Errorf("status = %+v", got)
	}
}

// TestServe_WaitsForStop verifies serve returns only after the shutdown
// sequence has finished, even though the listener stops first.
func TestServe_WaitsForStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := &http.Server{Handler: http.NewServeMux()}

	var closed atomic.Bool
	stop := func() {
		server.Shutdown(context.Background())
		time.Sleep(50 * time.Millisecond)
		closed.Store(true)
	}

	sigCh := make(chan os.Signal, 1)
	sigCh <- syscall.SIGTERM

	if err := serve(func() error { return server.Serve(ln) }, sigCh, stop); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if !closed.Load() {
		t.Error("serve returned before stop finished")
	}
}

// TestServe_ListenError verifies a listener failure is returned without
// waiting for a signal.
func TestServe_ListenError(t *testing.T) {
	bindErr := errors.New("address already in use")

	err := serve(func() error { return bindErr }, make(chan os.Signal), func() {})
	if !errors.Is(err, bindErr) {
		t.Errorf("err = %v, want %v", err, bindErr)
	}
}
