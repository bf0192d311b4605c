package shield

import (
	"net/http"
	"strings"
)

const userAgentKeyLength = 50

// CDN headers carry the original client address and are consulted before
// the generic forwarding headers.
var cdnHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Vercel-Forwarded-For",
}

// ClientIP returns the best-effort client address from the forwarding
// headers, or "unknown". It is spoofable and only used for quota keys and logs.
func ClientIP(r *http.Request) string {
	for _, header := range cdnHeaders {
		if ip := firstHop(r.Header.Get(header)); ip != "" {
			return ip
		}
	}

	if ip := firstHop(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	return "unknown"
}

// ClientKey fingerprints a client as its IP plus the start of its user
// agent. Clients behind the same NAT with the same browser share a key.
func ClientKey(r *http.Request) string {
	userAgent := r.Header.Get("User-Agent")
	if userAgent == "" {
		userAgent = "unknown"
	}
	return ClientIP(r) + ":" + truncateRunes(userAgent, userAgentKeyLength)
}

func firstHop(value string) string {
	if value == "" {
		return ""
	}
	first, _, _ := strings.Cut(value, ",")
	return strings.TrimSpace(first)
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
