package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}
	writeJSON(w, http.StatusOK, health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})
	fail := func(name, detail string) {
		checks[name] = "failed: " + detail
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if len(s.pages) == 0 {
		fail("templates", "templates not loaded")
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.backend == nil || s.backend.Backend == nil:
		fail("backend", "not configured")
	case s.backend.Ready != nil:
		if err := s.backend.Ready(ctx); err != nil {
			fail("backend", err.Error())
		} else {
			checks["backend"] = "ok"
		}
	default:
		checks["backend"] = "ok"
	}

	snap := s.tracker.Snapshot()
	checks["expenses"] = map[string]interface{}{
		"loaded": snap.Loaded(),
		"count":  len(snap.Expenses),
		"error":  snap.Error,
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
