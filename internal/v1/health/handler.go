// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/logging"
)

// Checker is a dependency that can report its own health.
type Checker interface {
	Healthy(ctx context.Context) error
}

// Handler manages health check endpoints.
type Handler struct {
	tokenSource Checker
}

// NewHandler creates a health handler. tokenSource may be nil when the video
// token provider has no health surface.
func NewHandler(tokenSource Checker) *Handler {
	return &Handler{tokenSource: tokenSource}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles GET /health/live. Returns 200 if the process is alive (no
// dependency checks).
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles GET /health/ready. Returns 200 only if all critical
// dependencies are healthy, 503 otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	checks["video_token_provider"] = h.checkTokenSource(ctx)
	if checks["video_token_provider"] != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) checkTokenSource(ctx context.Context) string {
	if h.tokenSource == nil {
		return "healthy"
	}
	if err := h.tokenSource.Healthy(ctx); err != nil {
		logging.Error(ctx, "Video token provider health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}
