// Package httpserver serves the liveness and readiness probes of a
// long-running bronzeload process.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// ReadinessCheck probes one dependency of the pipeline.
type ReadinessCheck struct {
	Name  string
	Check func(context.Context) error
}

// Probes answers /healthz with the most recent run and /readyz with the
// result of every dependency check.
type Probes struct {
	Service string
	// LastRun returns the most recent run outcome, or nil before the first run.
	LastRun      func() any
	Checks       []ReadinessCheck
	CheckTimeout time.Duration
}

func (p Probes) Handler(logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", p.healthz)
	mux.HandleFunc("GET /readyz", p.readyz)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("probe panicked", "path", r.URL.Path, "panic", v)
				writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal_server_error"})
			}
		}()
		mux.ServeHTTP(w, r)
	})
}

func (p Probes) lastRun() any {
	if p.LastRun == nil {
		return nil
	}
	return p.LastRun()
}

func (p Probes) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":  p.Service,
		"status":   "ok",
		"last_run": p.lastRun(),
	})
}

type checkResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func (p Probes) readyz(w http.ResponseWriter, r *http.Request) {
	results := make([]checkResult, 0, len(p.Checks))
	ready := true
	for _, c := range p.Checks {
		res := p.run(r.Context(), c)
		if res.Status != "ok" {
			ready = false
		}
		results = append(results, res)
	}

	code, status := http.StatusOK, "ready"
	if !ready {
		code, status = http.StatusServiceUnavailable, "not_ready"
	}
	writeJSON(w, code, map[string]any{
		"service":  p.Service,
		"status":   status,
		"checks":   results,
		"last_run": p.lastRun(),
	})
}

func (p Probes) run(ctx context.Context, c ReadinessCheck) checkResult {
	if p.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.CheckTimeout)
		defer cancel()
	}
	start := time.Now()
	err := c.Check(ctx)
	res := checkResult{Name: c.Name, Status: "ok", DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = "fail"
		res.Error = err.Error()
	}
	return res
}

// Serve listens on cfg.Addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, logger *slog.Logger, cfg Config, handler http.Handler) error {
	if cfg.Addr == "" {
		return errors.New("addr is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("probe server listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
