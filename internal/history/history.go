// Package history searches previously stored events for the dedup engine.
package history

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/PratikDhanave/event-dedup-service/internal/models"
)

// DefaultPageSize is the page size requested from a Searcher.
const DefaultPageSize = 100

var (
	// ErrUnexpectedStatus marks non-2xx answers from the event-query service.
	ErrUnexpectedStatus = errors.New("unexpected event search status")
	// ErrMalformedResponse marks payloads that cannot be decoded.
	ErrMalformedResponse = errors.New("malformed event search response")
)

// Searcher is the event-query collaborator: events of one tenant filtered by
// distinct id and event name, newest first, from After onward.
type Searcher interface {
	Search(ctx context.Context, q models.SearchQuery) (*models.SearchPage, error)
}

// Lookup fetches the recent history of one (tenant, user, event name) triple.
type Lookup struct {
	searcher Searcher
	maxPages int
	pageSize int
}

// NewLookup returns a Lookup that follows at most maxPages result pages.
func NewLookup(searcher Searcher, maxPages int) *Lookup {
	if maxPages < 1 {
		maxPages = 1
	}
	return &Lookup{searcher: searcher, maxPages: maxPages, pageSize: DefaultPageSize}
}

// Recent returns matching events stored at or after since, most recent first.
// Any search error aborts the lookup; callers decide how to degrade.
func (l *Lookup) Recent(ctx context.Context, tenantID, distinctID, eventName string, since time.Time) ([]models.HistoricalMatch, error) {
	q := models.SearchQuery{
		TenantID:   tenantID,
		DistinctID: distinctID,
		Event:      eventName,
		After:      since,
		Limit:      l.pageSize,
	}

	var out []models.HistoricalMatch
	for page := 0; page < l.maxPages; page++ {
		res, err := l.searcher.Search(ctx, q)
		if err != nil {
			return nil, errors.Wrapf(err, "search page %d", page)
		}
		if res == nil {
			return nil, errors.Wrap(ErrMalformedResponse, "empty page")
		}
		out = append(out, res.Results...)
		if res.Next == nil || *res.Next == "" {
			break
		}
		q.Cursor = *res.Next
	}
	return out, nil
}
