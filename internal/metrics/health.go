package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the JSON body returned by every health endpoint below.
// Detail carries endpoint-specific facts (e.g. process uptime, the
// rate-limiter/blob-store dependency that failed a readiness check)
// rather than a free-form message string.
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Detail    map[string]any `json:"detail,omitempty"`
}

var (
	startTime = time.Now()
	version   = "dev"
)

// SetVersion sets the container format version reported on every health
// endpoint, so an operator scraping /healthz can tell which format a
// running instance will produce without decoding a sample file.
func SetVersion(v string) {
	version = v
}

func writeStatus(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// HealthHandler reports process liveness plus the process uptime in whole
// seconds. Hardware acceleration status is not part of this response.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now(),
			Version:   version,
			Detail:    map[string]any{"uptime_seconds": int(time.Since(startTime).Seconds())},
		})
	}
}

// DependencyCheck is one named readiness probe: a blob-store round trip,
// a rate-limiter Redis ping, or any other external collaborator this
// instance needs before it should receive decode/restore traffic.
type DependencyCheck struct {
	Name  string
	Check func(context.Context) error
}

// ReadinessHandler runs every configured dependency check and reports
// not_ready (503) on the first failure, naming which dependency failed so
// an operator doesn't have to cross-reference logs to find out whether it
// was the blob store or the rate limiter that's down.
func ReadinessHandler(checks ...DependencyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, HealthStatus{
					Status:    "not_ready",
					Timestamp: time.Now(),
					Version:   version,
					Detail:    map[string]any{"failed_dependency": c.Name, "error": err.Error()},
				})
				return
			}
		}
		writeStatus(w, http.StatusOK, HealthStatus{Status: "ready", Timestamp: time.Now(), Version: version})
	}
}

// LivenessHandler reports that the process is scheduled and responding,
// independent of any external dependency.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, HealthStatus{Status: "alive", Timestamp: time.Now(), Version: version})
	}
}
