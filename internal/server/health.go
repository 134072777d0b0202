package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/teemow/autoreply/internal/autoreply"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker serves liveness and readiness probes. The server is ready
// once a mailbox session is running.
type HealthChecker struct {
	serverContext *ServerContext
	startTime     time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	return &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
}

// IsReady reports whether the poll loop is running.
func (h *HealthChecker) IsReady() bool {
	return h.serverContext != nil && h.serverContext.Sessions().State() == StateRunning
}

// isServerShuttingDown checks if the server context is shutting down.
// Returns false if serverContext is nil (safe for testing).
func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse provides comprehensive health information.
type DetailedHealthResponse struct {
	Status        string       `json:"status"`
	Uptime        string       `json:"uptime"`
	Session       string       `json:"session"`
	SessionUptime string       `json:"session_uptime,omitempty"`
	AuthorizedAt  string       `json:"authorized_at,omitempty"`
	Scans         int          `json:"scans"`
	LastScan      *ScanSummary `json:"last_scan,omitempty"`
}

// ScanSummary is the outcome of the most recent inbox scan.
type ScanSummary struct {
	RunID      string `json:"run_id"`
	FinishedAt string `json:"finished_at"`
	Duration   string `json:"duration"`
	Messages   int    `json:"messages"`
	Replied    int    `json:"replied"`
	Labeled    int    `json:"labeled"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

func summarizeScan(res *autoreply.ScanResult) *ScanSummary {
	if res == nil {
		return nil
	}
	sum := &ScanSummary{
		RunID:      res.RunID,
		FinishedAt: res.FinishedAt.UTC().Format(time.RFC3339),
		Duration:   res.Duration().String(),
		Messages:   res.Messages,
		Replied:    res.Count(autoreply.ActionReplied),
		Skipped:    res.Count(autoreply.ActionSkipped),
		Failed:     res.Count(autoreply.ActionFailed),
	}
	for _, t := range res.Threads {
		if t.Labeled() {
			sum.Labeled++
		}
	}
	if err := res.Err(); err != nil {
		sum.Error = err.Error()
	}
	return sum
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// It only reports that the process is serving.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		checks := make(map[string]string)
		allOk := true

		if h.IsReady() {
			checks["session"] = healthStatusOK
		} else {
			checks["session"] = healthStatusNotReady
			allOk = false
		}

		if h.isServerShuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
			allOk = false
		} else {
			checks["shutdown"] = healthStatusOK
		}

		response := HealthResponse{Checks: checks}
		if allOk {
			response.Status = healthStatusOK
			w.WriteHeader(http.StatusOK)
		} else {
			response.Status = healthStatusNotReady
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(response)
	})
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		response := DetailedHealthResponse{
			Status:  healthStatusOK,
			Uptime:  time.Since(h.startTime).Truncate(time.Second).String(),
			Session: StateIdle.String(),
		}
		if h.serverContext != nil {
			sessions := h.serverContext.Sessions()
			response.Session = sessions.State().String()
			if up := sessions.Uptime(); up > 0 {
				response.SessionUptime = up.Truncate(time.Second).String()
			}
			if sess := sessions.Session(); sess != nil && !sess.AuthorizedAt.IsZero() {
				response.AuthorizedAt = sess.AuthorizedAt.UTC().Format(time.RFC3339)
			}
			response.Scans = sessions.Scans()
			response.LastScan = summarizeScan(sessions.LastScan())
		}

		switch {
		case h.isServerShuttingDown():
			response.Status = healthStatusShuttingDown
			w.WriteHeader(http.StatusServiceUnavailable)
		case !h.IsReady():
			response.Status = healthStatusNotReady
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(response)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}
