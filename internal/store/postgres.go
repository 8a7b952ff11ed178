package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/event-dedup-service/internal/fingerprint"
	"github.com/PratikDhanave/event-dedup-service/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// MaxSearchLimit caps the page size of SearchEvents.
const MaxSearchLimit = 1000

// ErrInvalidCursor is returned for a cursor SearchEvents did not produce.
var ErrInvalidCursor = errors.New("invalid cursor")

// PostgresStore is the durable persistence layer for admitted events and the
// default backend of the historical lookup.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "create pgx pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return errors.Wrap(err, "apply schema")
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// InsertEvent persists an admitted event and returns inserted=false when the
// (tenant_id, event_id) pair already exists, which keeps client retries idempotent.
// ts is the event time to store; callers pass ingestion time for events without one.
// The received timestamp string is stored as well and is what Search returns,
// since timestamptz drops sub-microsecond digits.
func (p *PostgresStore) InsertEvent(ctx context.Context, eventID string, ev *models.Event, ts time.Time) (bool, error) {
	if ev == nil || ev.TenantID == "" || eventID == "" || ev.Event == "" {
		return false, errors.New("tenantID/eventID/eventName required")
	}

	// Compacted, not re-marshaled, so stored key order matches what was received.
	props := fingerprint.CanonicalProperties(ev.Properties)
	if !json.Valid([]byte(props)) {
		return false, errors.Newf("properties of event %s are not valid JSON", eventID)
	}

	// RETURNING 1 only when inserted; duplicates return no rows.
	var one int
	err := p.pool.QueryRow(ctx, `
		INSERT INTO events(tenant_id, event_id, distinct_id, event_name, ts, ts_raw, properties)
		VALUES ($1,$2,$3,$4,$5,$6,$7::json)
		ON CONFLICT (tenant_id, event_id) DO NOTHING
		RETURNING 1
	`, ev.TenantID, eventID, ev.DistinctID, ev.Event, ts.UTC(), strings.TrimSpace(ev.Timestamp), props).Scan(&one)

	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, errors.Wrap(err, "insert event")
}

// Search returns one page of a tenant's events, newest first. The cursor is the
// row offset of the next page.
func (p *PostgresStore) Search(ctx context.Context, q models.SearchQuery) (*models.SearchPage, error) {
	if q.TenantID == "" {
		return nil, errors.New("tenantID required")
	}

	offset := 0
	if q.Cursor != "" {
		n, err := strconv.Atoi(q.Cursor)
		if err != nil || n < 0 {
			return nil, errors.Wrapf(ErrInvalidCursor, "%q", q.Cursor)
		}
		offset = n
	}

	limit := q.Limit
	if limit <= 0 || limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	where := []string{"tenant_id = $1"}
	args := []any{q.TenantID}
	if q.DistinctID != "" {
		args = append(args, q.DistinctID)
		where = append(where, fmt.Sprintf("distinct_id = $%d", len(args)))
	}
	if q.Event != "" {
		args = append(args, q.Event)
		where = append(where, fmt.Sprintf("event_name = $%d", len(args)))
	}
	if !q.After.IsZero() {
		args = append(args, q.After.UTC())
		where = append(where, fmt.Sprintf("ts >= $%d", len(args)))
	}
	// One extra row tells whether another page exists.
	args = append(args, limit+1, offset)

	sql := fmt.Sprintf(`
		SELECT distinct_id, event_name, ts, ts_raw, properties::text
		FROM events
		WHERE %s
		ORDER BY ts DESC, inserted_at DESC
		LIMIT $%d OFFSET $%d
	`, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "search events")
	}
	defer rows.Close()

	page := &models.SearchPage{Results: []models.HistoricalMatch{}}
	for rows.Next() {
		var (
			m     models.HistoricalMatch
			ts    time.Time
			raw   string
			props string
		)
		if err := rows.Scan(&m.DistinctID, &m.Event, &ts, &raw, &props); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		m.Timestamp = storedTimestamp(raw, ts)
		m.Properties = json.RawMessage(props)
		page.Results = append(page.Results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate events")
	}

	if len(page.Results) > limit {
		page.Results = page.Results[:limit]
		next := strconv.Itoa(offset + limit)
		page.Next = &next
	}
	return page, nil
}

// storedTimestamp prefers the timestamp as received. Rows without one (events
// ingested without a timestamp, or written before ts_raw existed) fall back to ts.
func storedTimestamp(raw string, ts time.Time) string {
	if raw != "" {
		return raw
	}
	return models.FormatTimestamp(ts)
}

// CountEvents returns the number of events for (tenantID, eventName) in the time window [from,to).
// Using a half-open interval avoids double counting at window boundaries.
func (p *PostgresStore) CountEvents(
	ctx context.Context,
	tenantID string,
	eventName string,
	from time.Time,
	to time.Time,
) (int64, error) {

	var count int64
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM events
		WHERE tenant_id=$1
		  AND event_name=$2
		  AND ts >= $3
		  AND ts <  $4
	`, tenantID, eventName, from, to).Scan(&count)

	return count, errors.Wrap(err, "count events")
}
