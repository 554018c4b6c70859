package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/providers"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	redisClient *redis.Client // nil when running without Redis
	feed        *providers.FPLClient
	logger      *logrus.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(redisClient *redis.Client, feed *providers.FPLClient, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		redisClient: redisClient,
		feed:        feed,
		logger:      logger,
	}
}

// GetHealth handles GET /health.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "fpl-rank-optimizer",
	})
}

// GetReady handles GET /ready. The service is ready once a feed snapshot
// exists; Redis is reported but optional.
func (h *HealthHandler) GetReady(c *gin.Context) {
	checks := gin.H{}
	ready := true

	if snapshot := h.feed.Snapshot(); snapshot != nil {
		checks["feed"] = gin.H{"status": "ok", "fetched_at": snapshot.FetchedAt, "players": len(snapshot.Players)}
	} else {
		checks["feed"] = gin.H{"status": "pending"}
		ready = false
	}

	if h.redisClient != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			checks["redis"] = gin.H{"status": "error", "error": err.Error()}
		} else {
			checks["redis"] = gin.H{"status": "ok"}
		}
	} else {
		checks["redis"] = gin.H{"status": "disabled"}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}
