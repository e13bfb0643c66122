package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusOK        HealthStatus = "ok"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	LatencyMS int64        `json:"latency_ms,omitempty"`
}

// HealthCheckResponse represents the overall health check response.
type HealthCheckResponse struct {
	Status        HealthStatus               `json:"status"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Timestamp     string                     `json:"timestamp"`
	Checks        map[string]ComponentHealth `json:"checks"`
}

// HealthChecker performs health checks on system components.
type HealthChecker struct {
	version   string
	startTime time.Time
	checks    map[string]HealthCheckFunc
}

// HealthCheckFunc defines a function that checks component health.
type HealthCheckFunc func(ctx context.Context) ComponentHealth

// NewHealthChecker creates a new health checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]HealthCheckFunc),
	}
}

// RegisterCheck registers a health check for a component.
func (hc *HealthChecker) RegisterCheck(name string, checkFunc HealthCheckFunc) {
	hc.checks[name] = checkFunc
}

// Check performs all health checks.
func (hc *HealthChecker) Check(ctx context.Context) HealthCheckResponse {
	response := HealthCheckResponse{
		Status:        HealthStatusOK,
		Version:       hc.version,
		UptimeSeconds: int64(time.Since(hc.startTime).Seconds()),
		Timestamp:     time.Now().Format(time.RFC3339),
		Checks:        make(map[string]ComponentHealth),
	}

	for name, checkFunc := range hc.checks {
		health := checkFunc(ctx)
		response.Checks[name] = health

		// Update overall status
		if health.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
		} else if health.Status == HealthStatusDegraded && response.Status != HealthStatusUnhealthy {
			response.Status = HealthStatusDegraded
		}
	}

	return response
}

// Handler returns an HTTP handler for health checks.
func (hc *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		response := hc.Check(ctx)

		w.Header().Set("Content-Type", "application/json")

		// Set HTTP status based on health
		switch response.Status {
		case HealthStatusOK:
			w.WriteHeader(http.StatusOK)
		case HealthStatusDegraded:
			w.WriteHeader(http.StatusOK) // Still 200 but degraded
		case HealthStatusUnhealthy:
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// Common health check functions

// LocalBackendCheck checks that the local segment backend's directory is
// reachable and writable.
func LocalBackendCheck(dir string) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		probe := filepath.Join(dir, ".health-probe")
		err := os.WriteFile(probe, []byte{}, 0o600)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			return ComponentHealth{
				Status:    HealthStatusUnhealthy,
				Message:   fmt.Sprintf("backend directory %s not writable: %v", dir, err),
				LatencyMS: latency,
			}
		}
		os.Remove(probe)
		return ComponentHealth{
			Status:    HealthStatusOK,
			Message:   fmt.Sprintf("backend directory %s writable", dir),
			LatencyMS: latency,
		}
	}
}

// RemoteBackendCheck checks whether a remote QUIC backend address is
// configured and syntactically valid.
func RemoteBackendCheck(addr string) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		if addr == "" {
			return ComponentHealth{Status: HealthStatusOK, Message: "no remote backend configured"}
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return ComponentHealth{
				Status:  HealthStatusUnhealthy,
				Message: fmt.Sprintf("remote backend address %q invalid: %v", addr, err),
			}
		}
		return ComponentHealth{
			Status:  HealthStatusOK,
			Message: fmt.Sprintf("remote backend configured at %s", addr),
		}
	}
}

// KeyBundleCheck checks whether the repository's key bundle has been
// unsealed for the current process.
func KeyBundleCheck(unsealed bool) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		if unsealed {
			return ComponentHealth{
				Status:  HealthStatusOK,
				Message: "key bundle unsealed",
			}
		}
		return ComponentHealth{
			Status:  HealthStatusUnhealthy,
			Message: "key bundle not unsealed",
		}
	}
}

// DiskSpaceCheck checks available disk space under path. The actual free
// space probe is platform-specific; see diskfree_unix.go / diskfree_windows.go.
func DiskSpaceCheck(path string, minFreeGB int64) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		freeGB, err := diskFreeGB(path)
		if err != nil {
			return ComponentHealth{
				Status:  HealthStatusDegraded,
				Message: fmt.Sprintf("disk space probe %s: %v", path, err),
			}
		}

		if freeGB > minFreeGB {
			return ComponentHealth{
				Status:  HealthStatusOK,
				Message: fmt.Sprintf("%d GB free", freeGB),
			}
		}
		return ComponentHealth{
			Status:  HealthStatusDegraded,
			Message: fmt.Sprintf("low disk space: %d GB free", freeGB),
		}
	}
}
