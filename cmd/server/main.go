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

// Email Enrichment: Scheduled Service
//
// Long-running entry point. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Connects to Redis and PostgreSQL when configured
//  3. Runs the enrichment job immediately and then every ENRICH_INTERVAL
//  4. Serves /health and /status
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bcem/enrichment/internal/app"
	"github.com/bcem/enrichment/internal/config"
	"github.com/bcem/enrichment/internal/job"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting email enrichment service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"mode", cfg.Pipeline.Mode,
		"interval", cfg.Interval,
		"workers", cfg.Pipeline.Workers,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		slog.Error("failed to initialise", "error", err)
		os.Exit(1)
	}

	// --- Scheduler ---
	scheduler := job.NewScheduler(a.Job, cfg.Interval)
	scheduler.Start(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      newMux(a.Pingers, scheduler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	stop := func() {
		cancel() // Stop the in-flight run

		scheduler.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		a.Close()
	}

	slog.Info("enrichment service listening", "addr", addr)
	if err := serve(server.ListenAndServe, sigCh, stop); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("enrichment service stopped")
}

// serve runs listen until a signal arrives, then calls stop. It returns only
// after stop has finished, so connections are closed before main exits.
func serve(listen func() error, sigCh <-chan os.Signal, stop func()) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		stop()
	}()

	if err := listen(); err != http.ErrServerClosed {
		return err
	}
	<-done
	return nil
}

// statusSource is the part of the scheduler the status endpoint reads.
type statusSource interface {
	Status() job.Status
}

func newMux(pingers map[string]app.Pinger, status statusSource) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		for name, p := range pingers {
			if err := p.Ping(r.Context()); err != nil {
				http.Error(w, name+" unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status.Status())
	})

	return mux
}
