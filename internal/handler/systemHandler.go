package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/circuitbreaker"
	"github.com/aman-churiwal/thought-partner/internal/logger"
	"github.com/aman-churiwal/thought-partner/internal/ratelimit"
	"github.com/aman-churiwal/thought-partner/internal/service"
	"github.com/gin-gonic/gin"
)

// Handles system-related endpoints
type SystemHandler struct {
	limiter  *ratelimit.FixedWindowLimiter
	breakers map[string]*circuitbreaker.CircuitBreaker
	chat     *service.ChatService
	started  time.Time
}

func NewSystemHandler(limiter *ratelimit.FixedWindowLimiter, chat *service.ChatService, breakers ...*circuitbreaker.CircuitBreaker) *SystemHandler {
	byName := make(map[string]*circuitbreaker.CircuitBreaker, len(breakers))
	for _, b := range breakers {
		byName[b.Name()] = b
	}

	return &SystemHandler{
		limiter:  limiter,
		breakers: byName,
		chat:     chat,
		started:  time.Now(),
	}
}

// Handles GET /admin/status
func (h *SystemHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	tracked, err := h.limiter.Store().Len(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"gateway":          "running",
		"provider":         h.chat.Provider().Name(),
		"tracked_clients":  tracked,
		"conversations":    h.chat.Conversations().Len(),
		"circuit_breakers": h.breakerStatuses(),
		"rate_limit": gin.H{
			"max_requests":   h.limiter.Limit(),
			"window_ms":      h.limiter.Window().Milliseconds(),
			"block_duration": h.limiter.BlockDuration().Milliseconds(),
		},
		"uptime":    time.Since(h.started).Seconds(),
		"timestamp": time.Now().Unix(),
	})
}

// Handles DELETE /admin/quota?key=
func (h *SystemHandler) ResetQuota(c *gin.Context) {
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	if err := h.limiter.Reset(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger.Info("Client quota reset", "client_key", key)

	c.JSON(http.StatusOK, gin.H{
		"message": "Quota reset successfully",
		"key":     key,
	})
}

// Returns the status of all circuit breakers
func (h *SystemHandler) CircuitBreakerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.breakerStatuses())
}

func (h *SystemHandler) breakerStatuses() map[string]interface{} {
	statuses := make(map[string]interface{}, len(h.breakers))

	for name, breaker := range h.breakers {
		metrics := breaker.Metrics()

		statuses[name] = gin.H{
			"state":             metrics.State.String(),
			"failure_count":     metrics.FailureCount,
			"success_count":     metrics.SuccessCount,
			"last_failure_time": metrics.LastFailureTime,
			"last_state_change": metrics.LastStateChange,
		}
	}

	return statuses
}

// Manually resets a circuit breaker
func (h *SystemHandler) ResetCircuitBreaker(c *gin.Context) {
	name := c.Param("name")

	breaker, exists := h.breakers[name]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Circuit breaker not found",
		})
		return
	}

	breaker.Reset()

	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
		"name":    name,
	})
}
