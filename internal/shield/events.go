package shield

import (
	"encoding/json"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/logger"
	"github.com/aman-churiwal/thought-partner/internal/models"
)

type EventKind string

const (
	EventRateLimit          EventKind = "rate_limit"
	EventInvalidInput       EventKind = "invalid_input"
	EventAPIKeyFailed       EventKind = "api_key_failed"
	EventSuspiciousActivity EventKind = "suspicious_activity"
)

// Detail keys that are lifted into dedicated columns when persisted
const (
	DetailClientIP  = "ip"
	DetailClientKey = "client_key"
	DetailPath      = "path"
	DetailRequestID = "request_id"
)

type SecurityEvent struct {
	Kind      EventKind
	Timestamp time.Time
	Details   map[string]interface{}
}

// EventSink receives security events after they are logged. Record must not
// block the request path.
type EventSink interface {
	Record(event SecurityEvent)
}

// LogSecurityEvent records an event without affecting the caller. Failures
// in the logger or any sink are swallowed.
func (s *Shield) LogSecurityEvent(kind EventKind, details map[string]interface{}) {
	event := SecurityEvent{
		Kind:      kind,
		Timestamp: s.now().UTC(),
		Details:   details,
	}

	func() {
		defer func() { _ = recover() }()

		keysAndValues := make([]interface{}, 0, 2*len(details)+4)
		keysAndValues = append(keysAndValues, "kind", string(kind), "timestamp", event.Timestamp.Format(time.RFC3339Nano))
		for k, v := range details {
			keysAndValues = append(keysAndValues, k, v)
		}
		logger.Warn("[SECURITY] "+string(kind), keysAndValues...)
	}()

	for _, sink := range s.sinks {
		recordSafely(sink, event)
	}
}

func recordSafely(sink EventSink, event SecurityEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Security event sink panicked", "panic", r)
		}
	}()
	sink.Record(event)
}

// Model flattens the event into its persisted form
func (e SecurityEvent) Model() models.SecurityEvent {
	event := models.SecurityEvent{
		Timestamp: e.Timestamp,
		Kind:      string(e.Kind),
	}

	rest := make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		switch k {
		case DetailClientIP:
			event.ClientIP = toString(v)
		case DetailClientKey:
			event.ClientKey = toString(v)
		case DetailPath:
			event.Path = toString(v)
		case DetailRequestID:
			event.RequestID = toString(v)
		default:
			rest[k] = v
		}
	}

	if len(rest) > 0 {
		if encoded, err := json.Marshal(rest); err == nil {
			event.Details = string(encoded)
		}
	}

	return event
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}
