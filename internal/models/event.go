package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Event is one analytics occurrence as seen by the ingestion hook.
// Properties are kept as raw JSON so the key order chosen by the sender is preserved.
type Event struct {
	TenantID   string          `json:"tenant_id"`
	DistinctID string          `json:"distinct_id"`
	Event      string          `json:"event"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// HasTimestamp reports whether the event carries a timestamp at all.
func (e *Event) HasTimestamp() bool {
	return strings.TrimSpace(e.Timestamp) != ""
}

// Time parses the event timestamp.
func (e *Event) Time() (time.Time, error) {
	return ParseTimestamp(e.Timestamp)
}

// EventIngestRequest is the POST /events payload.
// event_id is optional; best practice is to pass Idempotency-Key header for retries.
type EventIngestRequest struct {
	EventID    string          `json:"event_id,omitempty"`
	DistinctID string          `json:"distinct_id"`
	Event      string          `json:"event"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// EventIngestResponse is returned by POST /events.
// Duplicate indicates the event was suppressed and not stored.
type EventIngestResponse struct {
	EventID     string `json:"event_id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Duplicate   bool   `json:"duplicate"`
	Reason      string `json:"reason"`
}

// ParseTimestamp parses an ISO-8601 timestamp with optional sub-second precision
// and normalizes it to UTC.
func ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(ts))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FormatTimestamp renders t the way stored events are returned to clients.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// SameTimestamp compares two timestamps for exact equality.
// Parseable values are compared as instants so "+00:00" and "Z" agree;
// anything else falls back to string comparison.
func SameTimestamp(a, b string) bool {
	ta, errA := ParseTimestamp(a)
	tb, errB := ParseTimestamp(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ta.Equal(tb)
}
