package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/segyhp/loan-servicing/pkg/logger"
	"github.com/segyhp/loan-servicing/pkg/response"
)

// Pinger is satisfied by *sqlx.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RedisPinger adapts a redis client's Ping to Pinger
type RedisPinger func(ctx context.Context) error

func (p RedisPinger) PingContext(ctx context.Context) error {
	return p(ctx)
}

type HealthHandler struct {
	db      Pinger
	redis   Pinger
	timeout time.Duration
}

func NewHealthHandler(db Pinger, redis Pinger, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{
		db:      db,
		redis:   redis,
		timeout: timeout,
	}
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health performs a basic health check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string),
	}

	response.Success(w, status)
}

// Ready performs readiness check including database and redis connectivity
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string),
	}

	h.check(r.Context(), &status, "database", h.db)
	h.check(r.Context(), &status, "redis", h.redis)

	if status.Status == "error" {
		response.JSON(w, http.StatusServiceUnavailable, status)
		return
	}

	response.Success(w, status)
}

func (h *HealthHandler) check(ctx context.Context, status *HealthStatus, name string, dep Pinger) {
	if dep == nil {
		status.Checks[name] = "not configured"
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := dep.PingContext(ctx); err != nil {
		logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
		status.Status = "error"
		status.Checks[name] = "failed: " + err.Error()
		return
	}
	status.Checks[name] = "ok"
}
