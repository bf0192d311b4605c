package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/service"
	"github.com/gin-gonic/gin"
)

// SecurityEventsHandler serves persisted security events. With no database
// configured every route answers 503.
type SecurityEventsHandler struct {
	service *service.SecurityAnalyticsService
}

func NewSecurityEventsHandler(service *service.SecurityAnalyticsService) *SecurityEventsHandler {
	return &SecurityEventsHandler{service: service}
}

func (h *SecurityEventsHandler) available(c *gin.Context) bool {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Security event storage is not configured"})
		return false
	}
	return true
}

// Handles GET /admin/security-events
func (h *SecurityEventsHandler) GetEvents(c *gin.Context) {
	if !h.available(c) {
		return
	}

	// Parse time range
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Parse pagination
	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	kind := c.Query("kind")

	ctx := c.Request.Context()
	events, err := h.service.GetEvents(ctx, kind, from, to, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.service.GetSummary(ctx, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events":  events,
		"summary": summary,
		"limit":   limit,
		"offset":  offset,
	})
}

// Parses 'from' and 'to' query parameters
func parseTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	// Default: last 24 hours
	to := time.Now()
	from := to.Add(-24 * time.Hour)

	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := parseTimeParam(fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}

	if toStr := c.Query("to"); toStr != "" {
		parsed, err := parseTimeParam(toStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}

	return from, to, nil
}

// Accepts RFC3339 or a Unix timestamp
func parseTimeParam(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return parsed, nil
	}
	if timestamp, convErr := strconv.ParseInt(value, 10, 64); convErr == nil {
		return time.Unix(timestamp, 0), nil
	}
	return time.Time{}, err
}
