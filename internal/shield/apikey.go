package shield

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

type APIKeyResult struct {
	Required bool `json:"required"`
	Valid    bool `json:"valid"`
}

// CheckAPIKey enforces the shared secret when one is configured. The key is
// read from X-API-Key, falling back to a Bearer authorization header.
func (s *Shield) CheckAPIKey(r *http.Request) APIKeyResult {
	secret := s.cfg.APIKey
	if secret == "" {
		return APIKeyResult{Required: false, Valid: true}
	}

	provided := providedAPIKey(r)
	if provided == "" {
		return APIKeyResult{Required: true, Valid: false}
	}

	valid := subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) == 1
	return APIKeyResult{Required: true, Valid: valid}
}

func providedAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}

	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return ""
}
