// Package dedup decides, per incoming event, whether it duplicates one already
// accepted. The decision never fails: every collaborator error resolves to
// admitting the event.
package dedup

import (
	"context"
	"time"

	"github.com/PratikDhanave/event-dedup-service/internal/cache"
	"github.com/PratikDhanave/event-dedup-service/internal/fingerprint"
	"github.com/PratikDhanave/event-dedup-service/internal/logger"
	"github.com/PratikDhanave/event-dedup-service/internal/models"
)

// DefaultLookback is how far before an event's timestamp the history search starts.
const DefaultLookback = time.Second

// Historian returns stored events for (tenant, user, event name) at or after since.
type Historian interface {
	Recent(ctx context.Context, tenantID, distinctID, eventName string, since time.Time) ([]models.HistoricalMatch, error)
}

// Reason explains an Outcome.
type Reason string

const (
	ReasonNew              Reason = "new"
	ReasonMissingTimestamp Reason = "missing_timestamp"
	ReasonCacheHit         Reason = "cache_hit"
	ReasonHistoricalMatch  Reason = "historical_match"
)

// Outcome is the result of one decision. Event is nil when the event is suppressed.
type Outcome struct {
	Event       *models.Event
	Fingerprint fingerprint.Key
	Reason      Reason
}

// Admitted reports whether the event should be forwarded downstream.
func (o Outcome) Admitted() bool {
	return o.Event != nil
}

// Options tune an Engine. Zero values select the defaults.
type Options struct {
	Policy   fingerprint.Policy
	Lookback time.Duration
	CacheTTL time.Duration
}

// Engine holds no per-event state; the cache is the only shared mutable state.
// Safe for concurrent use when its collaborators are.
type Engine struct {
	cache    cache.Cache
	history  Historian
	policy   fingerprint.Policy
	lookback time.Duration
	ttl      time.Duration
	log      *logger.Logger
}

// NewEngine wires the decision engine. history may be nil, in which case only
// the fingerprint cache is consulted.
func NewEngine(c cache.Cache, history Historian, opts Options, log *logger.Logger) *Engine {
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.TTL
	}
	return &Engine{
		cache:    c,
		history:  history,
		policy:   opts.Policy,
		lookback: opts.Lookback,
		ttl:      opts.CacheTTL,
		log:      log,
	}
}

// Policy returns the equality policy the engine applies.
func (e *Engine) Policy() fingerprint.Policy {
	return e.policy
}

// Process returns ev unchanged when it is admitted and nil when it must be dropped.
func (e *Engine) Process(ctx context.Context, ev *models.Event) *models.Event {
	return e.Decide(ctx, ev).Event
}

// Decide runs the dedup state machine for one event.
func (e *Engine) Decide(ctx context.Context, ev *models.Event) Outcome {
	if ev == nil {
		return Outcome{}
	}

	if !ev.HasTimestamp() {
		e.log.Warnw("event has no timestamp, skipping deduplication",
			"event", ev.Event, "distinct_id", ev.DistinctID, "tenant_id", ev.TenantID)
		return Outcome{Event: ev, Reason: ReasonMissingTimestamp}
	}

	key := fingerprint.Build(ev, e.policy)

	found, err := e.cache.Get(ctx, string(key))
	if err != nil {
		e.log.Warnw("fingerprint cache read failed, treating as miss", "fingerprint", key, "error", err)
	}
	if found {
		e.log.Infow("prevented duplicate event ingestion",
			"event", ev.Event, "timestamp", ev.Timestamp, "distinct_id", ev.DistinctID, "tenant_id", ev.TenantID)
		return Outcome{Fingerprint: key, Reason: ReasonCacheHit}
	}

	// Marked before the history check so fast resubmissions hit the cache
	// instead of racing into a second lookup.
	if err := e.cache.Set(ctx, string(key), e.ttl); err != nil {
		e.log.Warnw("fingerprint cache write failed", "fingerprint", key, "error", err)
	}

	if e.duplicateInHistory(ctx, ev) {
		e.log.Infow("prevented duplicate event ingestion found in event history",
			"event", ev.Event, "timestamp", ev.Timestamp, "distinct_id", ev.DistinctID, "tenant_id", ev.TenantID)
		return Outcome{Fingerprint: key, Reason: ReasonHistoricalMatch}
	}

	return Outcome{Event: ev, Fingerprint: key, Reason: ReasonNew}
}

// lookupResult is a history search that already failed open: on error
// Matches is empty and Err records why.
type lookupResult struct {
	Matches []models.HistoricalMatch
	Err     error
}

func (e *Engine) recent(ctx context.Context, ev *models.Event, ts time.Time) lookupResult {
	matches, err := e.history.Recent(ctx, ev.TenantID, ev.DistinctID, ev.Event, ts.Add(-e.lookback))
	if err != nil {
		return lookupResult{Err: err}
	}
	return lookupResult{Matches: matches}
}

func (e *Engine) duplicateInHistory(ctx context.Context, ev *models.Event) bool {
	if e.history == nil {
		return false
	}

	ts, err := ev.Time()
	if err != nil {
		e.log.Warnw("unparseable event timestamp, skipping history check",
			"timestamp", ev.Timestamp, "event", ev.Event, "error", err)
		return false
	}

	res := e.recent(ctx, ev, ts)
	if res.Err != nil {
		e.log.Warnw("historical event lookup failed, admitting event",
			"event", ev.Event, "distinct_id", ev.DistinctID, "tenant_id", ev.TenantID, "error", res.Err)
		return false
	}

	for _, m := range res.Matches {
		if e.policy.Matches(ev, m) {
			return true
		}
	}
	return false
}
