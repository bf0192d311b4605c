package shield

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValidationKind names the check an input failed
type ValidationKind string

const (
	KindMissingOrWrongType    ValidationKind = "missing_or_wrong_type"
	KindTooLong               ValidationKind = "too_long"
	KindSuspiciousPattern     ValidationKind = "suspicious_pattern"
	KindEmptyAfterSanitize    ValidationKind = "empty_after_sanitize"
	KindContextTooLarge       ValidationKind = "context_too_large"
	KindContextUnserializable ValidationKind = "context_unserializable"
)

type ValidationResult struct {
	Valid     bool           `json:"valid"`
	Kind      ValidationKind `json:"kind,omitempty"`
	Error     string         `json:"error,omitempty"`
	Sanitized string         `json:"sanitized,omitempty"`
}

// A coarse denylist of injection-looking input. It is a heuristic filter,
// not a sanitizer, and callers must not rely on it for output encoding.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)exec\(`),
	regexp.MustCompile(`\$\{`),
}

// Never reveal which pattern matched.
const suspiciousInputMessage = "Invalid input detected"

// ValidateMessage checks a chat message and its optional context object.
// maxLength counts characters, maxContextSize counts bytes of the JSON
// encoding of chatContext.
func ValidateMessage(message interface{}, chatContext interface{}, maxLength int, maxContextSize int64) ValidationResult {
	text, ok := message.(string)
	if !ok || text == "" {
		return invalid(KindMissingOrWrongType, "Message is required and must be a string")
	}

	if utf8.RuneCountInString(text) > maxLength {
		return invalid(KindTooLong, fmt.Sprintf("Message too long. Maximum length is %d characters.", maxLength))
	}

	if matchesSuspicious(text) {
		return invalid(KindSuspiciousPattern, suspiciousInputMessage)
	}

	sanitized := strings.TrimSpace(strings.ReplaceAll(text, "\x00", ""))
	if sanitized == "" {
		return invalid(KindEmptyAfterSanitize, "Message cannot be empty")
	}

	if chatContext != nil {
		encoded, err := json.Marshal(chatContext)
		if err != nil {
			return invalid(KindContextUnserializable, "Request context is invalid")
		}
		if int64(len(encoded)) > maxContextSize {
			return invalid(KindContextTooLarge, "Request context too large")
		}
	}

	return ValidationResult{Valid: true, Sanitized: sanitized}
}

func matchesSuspicious(text string) bool {
	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

func invalid(kind ValidationKind, msg string) ValidationResult {
	return ValidationResult{Valid: false, Kind: kind, Error: msg}
}
