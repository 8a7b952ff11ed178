package models

import (
	"encoding/json"
	"time"
)

// HistoricalMatch is the projection of a stored event returned by an event search.
type HistoricalMatch struct {
	DistinctID string          `json:"distinct_id"`
	Event      string          `json:"event"`
	Timestamp  string          `json:"timestamp"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// SearchQuery selects stored events of one tenant, newest first.
// Empty DistinctID/Event and a zero After mean "no filter".
type SearchQuery struct {
	TenantID   string
	DistinctID string
	Event      string
	After      time.Time
	Cursor     string
	Limit      int
}

// SearchPage is one page of search results. Next is nil on the last page.
type SearchPage struct {
	Results []HistoricalMatch `json:"results"`
	Next    *string           `json:"next"`
}
