package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aman-churiwal/thought-partner/internal/logger"
	"github.com/aman-churiwal/thought-partner/internal/models"
	"github.com/aman-churiwal/thought-partner/internal/shield"
	"github.com/gin-gonic/gin"
)

// ChatRequestKey holds the validated *models.ValidatedChatRequest on the gin context
const ChatRequestKey = "chat_request"

// Shield runs the request shield in front of the chat handlers: API key,
// then rate limit, then body size, then JSON parsing, then validation. The
// first failing check answers the request.
func Shield(sh *shield.Shield) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := c.Request
		requestID := c.GetString(RequestIDKey)

		if !checkAPIKey(c, sh) {
			return
		}

		res, err := sh.CheckRateLimit(r.Context(), r)
		if err != nil {
			logger.Error("Rate limit check failed", "request_id", requestID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Rate limit check failed",
			})
			return
		}

		for name, value := range sh.SecurityHeaders(res) {
			c.Header(name, value)
		}

		if !res.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"category":    "rate_limit",
				"retry_after": res.RetryAfter,
			})
			return
		}

		limit := sh.MaxRequestSize()
		if r.ContentLength > limit {
			rejectOversized(c, sh, requestID)
			return
		}
		r.Body = http.MaxBytesReader(c.Writer, r.Body, limit)

		var body models.ChatRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				rejectOversized(c, sh, requestID)
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":    "Invalid JSON body",
				"category": "invalid_input",
			})
			return
		}

		result := sh.ValidateInput(body.Message, body.Context)
		if !result.Valid {
			sh.LogSecurityEvent(shield.EventInvalidInput, map[string]interface{}{
				shield.DetailClientIP:  shield.ClientIP(r),
				shield.DetailPath:      r.URL.Path,
				shield.DetailRequestID: requestID,
				"kind":                 string(result.Kind),
			})
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":    result.Error,
				"category": "invalid_input",
				"kind":     result.Kind,
			})
			return
		}

		c.Set(ChatRequestKey, &models.ValidatedChatRequest{
			Message:        result.Sanitized,
			Context:        body.Context,
			Mode:           body.Mode,
			ConversationID: body.ConversationID,
		})

		c.Next()
	}
}

// RequireAPIKey applies only the shared secret check of the shield
func RequireAPIKey(sh *shield.Shield) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !checkAPIKey(c, sh) {
			return
		}
		c.Next()
	}
}

func checkAPIKey(c *gin.Context, sh *shield.Shield) bool {
	auth := sh.CheckAPIKey(c.Request)
	if !auth.Required || auth.Valid {
		return true
	}

	sh.LogSecurityEvent(shield.EventAPIKeyFailed, map[string]interface{}{
		shield.DetailClientIP:  shield.ClientIP(c.Request),
		shield.DetailPath:      c.Request.URL.Path,
		shield.DetailRequestID: c.GetString(RequestIDKey),
	})
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":    "Unauthorized",
		"category": "api_key",
	})
	return false
}

func rejectOversized(c *gin.Context, sh *shield.Shield, requestID string) {
	sh.LogSecurityEvent(shield.EventSuspiciousActivity, map[string]interface{}{
		shield.DetailClientIP:  shield.ClientIP(c.Request),
		shield.DetailPath:      c.Request.URL.Path,
		shield.DetailRequestID: requestID,
		"reason":               "request_too_large",
		"content_length":       strconv.FormatInt(c.Request.ContentLength, 10),
	})
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
		"error":    "Request too large",
		"category": "invalid_input",
	})
}

// ValidatedChatRequest returns the request stored by Shield
func ValidatedChatRequest(c *gin.Context) (*models.ValidatedChatRequest, bool) {
	v, exists := c.Get(ChatRequestKey)
	if !exists {
		return nil, false
	}
	req, ok := v.(*models.ValidatedChatRequest)
	return req, ok
}
