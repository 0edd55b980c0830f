// Copyright 2026 The Alice Authors
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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wojcikm/alice/pkg/agent"
	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/observability"
)

// maxRequestBytes bounds the chat request body.
const maxRequestBytes = 1 << 20

// Runner runs one turn. *agent.Agent satisfies it.
type Runner interface {
	Run(ctx context.Context, req agent.Request) (*agent.Response, error)
}

// HTTPServer serves the chat API.
type HTTPServer struct {
	runner        Runner
	observability *observability.Manager
	cfg           config.ServerConfig
	server        *http.Server
}

// NewHTTPServer creates a server. A nil manager disables tracing and metrics.
func NewHTTPServer(cfg config.ServerConfig, runner Runner, obs *observability.Manager) *HTTPServer {
	if obs == nil {
		obs = observability.Noop()
	}
	cfg.SetDefaults()
	return &HTTPServer{runner: runner, observability: obs, cfg: cfg}
}

// Handler returns the routed handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(observability.HTTPMiddleware(s.observability.Tracer()))
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.observability.MetricsHandler().ServeHTTP)
	r.Post("/api/chat", s.handleChat)
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	cfg := s.cfg
	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("HTTP server starting", "address", cfg.Address)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown waits up to five seconds for in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

// Address returns the configured listen address.
func (s *HTTPServer) Address() string {
	return s.cfg.Address
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamChat(w, r, req)
		return
	}

	resp, err := s.runner.Run(r.Context(), req)
	if err != nil {
		status, msg := errorStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// streamChat sends answer deltas as "delta" events and the full response
// as a final "done" event.
func (s *HTTPServer) streamChat(w http.ResponseWriter, r *http.Request, req agent.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	req.OnDelta = func(delta string) {
		writeEvent(w, "delta", map[string]string{"text": delta})
		flusher.Flush()
	}

	resp, err := s.runner.Run(r.Context(), req)
	if err != nil {
		_, msg := errorStatus(err)
		writeEvent(w, "error", map[string]string{"error": msg})
	} else {
		writeEvent(w, "done", resp)
	}
	flusher.Flush()
}

// errorStatus maps a turn error to a status and a message safe to return.
func errorStatus(err error) (int, string) {
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeEvent(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to encode event", "event", event, "error", err)
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware does not wrap the ResponseWriter so http.Flusher stays
// reachable for streaming.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
