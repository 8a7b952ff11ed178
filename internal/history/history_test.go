package history

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/event-dedup-service/internal/models"
)

// pagedSearcher serves fixed pages and records the queries it saw.
type pagedSearcher struct {
	pages   [][]models.HistoricalMatch
	err     error
	queries []models.SearchQuery
}

func (s *pagedSearcher) Search(_ context.Context, q models.SearchQuery) (*models.SearchPage, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	idx := 0
	if q.Cursor != "" {
		idx, _ = strconv.Atoi(q.Cursor)
	}
	page := &models.SearchPage{Results: s.pages[idx]}
	if idx+1 < len(s.pages) {
		next := strconv.Itoa(idx + 1)
		page.Next = &next
	}
	return page, nil
}

func match(ts string) models.HistoricalMatch {
	return models.HistoricalMatch{DistinctID: "007", Event: "$pageview", Timestamp: ts}
}

func TestLookup_Recent_PassesFilters(t *testing.T) {
	s := &pagedSearcher{pages: [][]models.HistoricalMatch{{match("2020-01-01T00:00:01Z")}}}
	since := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := NewLookup(s, 1).Recent(context.Background(), "13", "007", "$pageview", since)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.Len(t, s.queries, 1)
	q := s.queries[0]
	assert.Equal(t, "13", q.TenantID)
	assert.Equal(t, "007", q.DistinctID)
	assert.Equal(t, "$pageview", q.Event)
	assert.True(t, since.Equal(q.After))
	assert.Equal(t, DefaultPageSize, q.Limit)
}

func TestLookup_Recent_FollowsCursorUpToMaxPages(t *testing.T) {
	s := &pagedSearcher{pages: [][]models.HistoricalMatch{
		{match("2020-01-01T00:00:03Z")},
		{match("2020-01-01T00:00:02Z")},
		{match("2020-01-01T00:00:01Z")},
	}}

	got, err := NewLookup(s, 2).Recent(context.Background(), "13", "007", "$pageview", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2020-01-01T00:00:03Z", got[0].Timestamp)
	assert.Equal(t, "2020-01-01T00:00:02Z", got[1].Timestamp)
	assert.Len(t, s.queries, 2)
}

func TestLookup_Recent_StopsOnLastPage(t *testing.T) {
	s := &pagedSearcher{pages: [][]models.HistoricalMatch{{match("2020-01-01T00:00:03Z")}}}

	got, err := NewLookup(s, 5).Recent(context.Background(), "13", "007", "$pageview", time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Len(t, s.queries, 1)
}

func TestLookup_Recent_Error(t *testing.T) {
	boom := errors.New("connection refused")
	s := &pagedSearcher{err: boom}

	got, err := NewLookup(s, 1).Recent(context.Background(), "13", "007", "$pageview", time.Time{})
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, boom))
}

func TestNewLookup_ClampsPages(t *testing.T) {
	assert.Equal(t, 1, NewLookup(&pagedSearcher{}, 0).maxPages)
}
