// Package shield guards the chat endpoint: it authenticates callers with an
// optional shared secret, enforces per-client quotas, validates message
// payloads and reports security events.
package shield

import (
	"context"
	"net/http"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/config"
	"github.com/aman-churiwal/thought-partner/internal/logger"
	"github.com/aman-churiwal/thought-partner/internal/ratelimit"
)

type Shield struct {
	cfg     config.ShieldConfig
	limiter *ratelimit.FixedWindowLimiter
	sinks   []EventSink
	now     func() time.Time
}

func New(cfg config.ShieldConfig, limiter *ratelimit.FixedWindowLimiter, sinks ...EventSink) *Shield {
	return &Shield{
		cfg:     cfg,
		limiter: limiter,
		sinks:   sinks,
		now:     time.Now,
	}
}

// CheckRateLimit charges the request against its client's quota. Denials
// are reported as rate_limit events. An error means the quota store failed
// and the request must be rejected.
func (s *Shield) CheckRateLimit(ctx context.Context, r *http.Request) (ratelimit.Result, error) {
	key := ClientKey(r)

	res, err := s.limiter.Allow(ctx, key)
	if err != nil {
		return ratelimit.Result{}, err
	}

	if !res.Allowed {
		reason := "blocked"
		if res.NewlyBlocked {
			reason = "quota_exceeded"
		}
		s.LogSecurityEvent(EventRateLimit, map[string]interface{}{
			DetailClientIP:  ClientIP(r),
			DetailClientKey: key,
			DetailPath:      r.URL.Path,
			"reason":        reason,
			"retry_after":   res.RetryAfter,
			"blocked_until": formatResetTime(res.ResetTime),
		})
	}

	return res, nil
}

// ValidateInput checks and sanitizes a chat message against the configured limits.
func (s *Shield) ValidateInput(message interface{}, chatContext interface{}) ValidationResult {
	res := ValidateMessage(message, chatContext, s.cfg.MaxMessageLength, s.cfg.MaxRequestSize)
	if res.Kind == KindSuspiciousPattern {
		logger.Debug("Suspicious input rejected")
	}
	return res
}

// ValidateReply applies the same checks to an assistant reply the client asks
// to save. Saved replies are replayed to the model as history.
func (s *Shield) ValidateReply(reply interface{}) ValidationResult {
	res := ValidateMessage(reply, nil, s.cfg.MaxReplyLength, s.cfg.MaxRequestSize)
	if res.Kind == KindSuspiciousPattern {
		logger.Debug("Suspicious reply rejected")
	}
	return res
}

func (s *Shield) MaxRequestSize() int64 {
	return s.cfg.MaxRequestSize
}

func (s *Shield) Limiter() *ratelimit.FixedWindowLimiter {
	return s.limiter
}
