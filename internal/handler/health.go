package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process and dependency health
type HealthHandler struct {
	required map[string]Pinger
	optional map[string]Pinger
	version  string
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. A failing required check
// makes the service unhealthy; a failing optional check only degrades it.
func NewHealthHandler(required, optional map[string]Pinger, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		required: required,
		optional: optional,
		version:  version,
		logger:   logger,
	}
}

// GetHealth implements the health check endpoint
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{}
	status := "healthy"

	for _, name := range sortedKeys(h.required) {
		if err := h.required[name].Ping(ctx); err != nil {
			h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unreachable"
			status = "unhealthy"
			continue
		}
		checks[name] = "connected"
	}

	for _, name := range sortedKeys(h.optional) {
		if err := h.optional[name].Ping(ctx); err != nil {
			h.logger.Warn("optional dependency unreachable", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unreachable"
			if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		checks[name] = "connected"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":  status,
		"checks":  checks,
		"service": "adherence-engine",
		"version": h.version,
	})
}

func sortedKeys(m map[string]Pinger) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
