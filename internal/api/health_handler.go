package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmup-engine/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthChecker pings the engine's dependencies. Any dependency can be nil;
// nil deps report "not_configured" and do not degrade overall status.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	version     string
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, version string) *HealthChecker {
	if version == "" {
		version = "dev"
	}
	return &HealthChecker{
		db:          db,
		redisClient: redisClient,
		version:     version,
		startTime:   time.Now(),
	}
}

// Check runs all component checks with a shared deadline.
func (hc *HealthChecker) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:  "healthy",
		Version: hc.version,
		Uptime:  time.Since(hc.startTime).Round(time.Second).String(),
		Checks:  make(map[string]ComponentCheck),
	}

	status.Checks["database"] = hc.checkDatabase(ctx)
	status.Checks["redis"] = hc.checkRedis(ctx)

	for _, check := range status.Checks {
		if check.Status == "down" {
			status.Status = "unhealthy"
			break
		}
	}
	return status
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	start := time.Now()
	if err := hc.db.PingContext(ctx); err != nil {
		return ComponentCheck{Status: "down", Message: err.Error()}
	}
	return ComponentCheck{Status: "up", Latency: fmt.Sprintf("%dms", time.Since(start).Milliseconds())}
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	start := time.Now()
	if err := hc.redisClient.Ping(ctx).Err(); err != nil {
		return ComponentCheck{Status: "down", Message: err.Error()}
	}
	return ComponentCheck{Status: "up", Latency: fmt.Sprintf("%dms", time.Since(start).Milliseconds())}
}

// HealthCheck serves GET /health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		httputil.OK(w, map[string]string{"status": "healthy"})
		return
	}
	status := h.health.Check(r.Context())
	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, status)
}
