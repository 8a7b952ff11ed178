// Package fingerprint derives the identity key used to recognize duplicate events.
package fingerprint

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/PratikDhanave/event-dedup-service/internal/models"
)

// Policy decides which attributes must match for two events to be duplicates.
type Policy int

const (
	// TimestampOnly compares tenant, distinct id, event name and timestamp.
	TimestampOnly Policy = iota
	// AllProperties additionally compares the serialized property mapping.
	AllProperties
)

// dedupMode values accepted from configuration.
const (
	ModeEventAndTimestamp = "Event and Timestamp"
	ModeAllProperties     = "All Properties"
)

// ErrUnknownMode is returned by ParsePolicy for an unrecognized dedupMode.
var ErrUnknownMode = errors.New("unknown dedup mode")

// ParsePolicy maps a dedupMode configuration value to a Policy.
// An empty mode selects TimestampOnly.
func ParsePolicy(mode string) (Policy, error) {
	switch strings.TrimSpace(mode) {
	case "", ModeEventAndTimestamp:
		return TimestampOnly, nil
	case ModeAllProperties:
		return AllProperties, nil
	default:
		return TimestampOnly, errors.Wrapf(ErrUnknownMode, "%q (want %q or %q)", mode, ModeEventAndTimestamp, ModeAllProperties)
	}
}

func (p Policy) String() string {
	if p == AllProperties {
		return ModeAllProperties
	}
	return ModeEventAndTimestamp
}

// Key is the hex encoded SHA-1 digest of an event's canonical string.
type Key string

// Build returns the fingerprint of ev under p. The caller must make sure the
// event has a timestamp; without one the key would not identify anything.
func Build(ev *models.Event, p Policy) Key {
	sum := sha1.Sum([]byte(Canonical(ev, p)))
	return Key(hex.EncodeToString(sum[:]))
}

// Canonical is the pre-hash identity string:
// tenant_distinct_event_timestamp, plus _properties under AllProperties.
func Canonical(ev *models.Event, p Policy) string {
	var b strings.Builder
	b.WriteString(ev.TenantID)
	b.WriteByte('_')
	b.WriteString(ev.DistinctID)
	b.WriteByte('_')
	b.WriteString(ev.Event)
	b.WriteByte('_')
	b.WriteString(ev.Timestamp)
	if p == AllProperties {
		b.WriteByte('_')
		b.WriteString(CanonicalProperties(ev.Properties))
	}
	return b.String()
}

// CanonicalProperties compacts raw property JSON without reordering keys.
// Key order is significant: {"a":1,"b":2} and {"b":2,"a":1} serialize differently.
// Absent or null properties serialize as "{}".
func CanonicalProperties(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

// Matches reports whether a stored event duplicates ev under p.
// The search may filter more loosely than exact match, so a non-empty distinct
// id or event name on m must equal ev's. Tenant is fixed by the search scope.
func (p Policy) Matches(ev *models.Event, m models.HistoricalMatch) bool {
	if m.DistinctID != "" && m.DistinctID != ev.DistinctID {
		return false
	}
	if m.Event != "" && m.Event != ev.Event {
		return false
	}
	if !models.SameTimestamp(m.Timestamp, ev.Timestamp) {
		return false
	}
	if p == AllProperties {
		return CanonicalProperties(m.Properties) == CanonicalProperties(ev.Properties)
	}
	return true
}
