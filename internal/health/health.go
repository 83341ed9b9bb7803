// Package health serves the liveness and readiness probes.
//
//   - GET /healthz answers 200 while the process can serve HTTP.
//   - GET /readyz runs every registered [Checker] and answers 503 when a
//     required one fails. Failing optional checks only mark the response
//     "degraded".
//
// Both endpoints reply with JSON: a top-level "status" ("ok", "degraded" or
// "fail") and, for /readyz, one entry per check.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single check.
const checkTimeout = 5 * time.Second

// Response statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Checker probes one dependency.
type Checker struct {
	// Name keys the check in the response, e.g. "sessions" or "stt".
	Name string

	// Check returns nil when the dependency is usable. It must honour ctx.
	Check func(ctx context.Context) error

	// Optional checks cannot make the service unready. Use it for
	// dependencies only some conversations need.
	Optional bool
}

type checkResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Optional  bool   `json:"optional,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

type response struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves the probes. The checker list is fixed by [New].
type Handler struct {
	checkers []Checker
}

// New returns a Handler evaluating checkers on every readiness request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: StatusOK})
}

// Readyz runs all checks concurrently, each under [checkTimeout].
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := h.evaluate(r.Context())
	code := http.StatusOK
	if res.Status == StatusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, res)
}

// evaluate runs the checks and folds them into one status.
func (h *Handler) evaluate(ctx context.Context) response {
	var (
		mu      sync.Mutex
		results = make(map[string]checkResult, len(h.checkers))
		g       errgroup.Group
	)
	for _, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			start := time.Now()
			err := c.Check(cctx)

			cr := checkResult{Status: StatusOK, Optional: c.Optional, ElapsedMS: time.Since(start).Milliseconds()}
			if err != nil {
				cr.Status, cr.Error = StatusFail, err.Error()
			}
			mu.Lock()
			results[c.Name] = cr
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := StatusOK
	for _, cr := range results {
		switch {
		case cr.Status == StatusOK:
		case cr.Optional:
			if status == StatusOK {
				status = StatusDegraded
			}
		default:
			status = StatusFail
		}
	}
	return response{Status: status, Checks: results}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"fail"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}
