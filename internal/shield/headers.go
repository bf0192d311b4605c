package shield

import (
	"strconv"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/ratelimit"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// ISO-8601 in UTC with millisecond precision
const resetTimeLayout = "2006-01-02T15:04:05.000Z"

// SecurityHeaders renders the quota state of res as response headers.
// Denials also carry Retry-After in seconds.
func (s *Shield) SecurityHeaders(res ratelimit.Result) map[string]string {
	headers := map[string]string{
		HeaderRateLimitLimit:     strconv.Itoa(s.limiter.Limit()),
		HeaderRateLimitRemaining: strconv.Itoa(res.Remaining),
		HeaderRateLimitReset:     formatResetTime(res.ResetTime),
	}

	if !res.Allowed && res.RetryAfter > 0 {
		headers[HeaderRetryAfter] = strconv.Itoa(res.RetryAfter)
	}

	return headers
}

func formatResetTime(t time.Time) string {
	return t.UTC().Format(resetTimeLayout)
}
