package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PratikDhanave/event-dedup-service/internal/auth"
	"github.com/PratikDhanave/event-dedup-service/internal/dedup"
	"github.com/PratikDhanave/event-dedup-service/internal/logger"
	"github.com/PratikDhanave/event-dedup-service/internal/models"
	"github.com/PratikDhanave/event-dedup-service/internal/store"
)

// Decider is the dedup decision for one event.
type Decider interface {
	Decide(ctx context.Context, ev *models.Event) dedup.Outcome
}

// EventStore persists admitted events and serves event searches.
type EventStore interface {
	InsertEvent(ctx context.Context, eventID string, ev *models.Event, ts time.Time) (bool, error)
	Search(ctx context.Context, q models.SearchQuery) (*models.SearchPage, error)
}

// RegisterEventRoutes registers the ingestion hook.
//
// POST /events
// - Requires X-API-Key (tenant context)
// - Runs the dedup decision; suppressed events answer 200 with duplicate=true
// - Admitted events are stored when st is non-nil and answer 201
// - A repeated event_id / Idempotency-Key is also reported as a duplicate
// - If storing fails the answer is 503, but the fingerprint stays cached for an
//   hour: an identical retry is reported as a duplicate and not stored. Retry
//   with a new timestamp, or after the hour has passed.
func RegisterEventRoutes(r gin.IRoutes, engine Decider, st EventStore, log *logger.Logger) {
	r.POST("/events", func(c *gin.Context) {
		tenantID := auth.TenantID(c)
		if tenantID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req models.EventIngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		// Required fields per contract. A missing timestamp is accepted and
		// bypasses deduplication.
		if req.Event == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event required"})
			return
		}
		if req.DistinctID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "distinct_id required"})
			return
		}

		ev := &models.Event{
			TenantID:   tenantID,
			DistinctID: req.DistinctID,
			Event:      req.Event,
			Timestamp:  strings.TrimSpace(req.Timestamp),
			Properties: req.Properties,
		}

		storedAt := time.Now().UTC()
		if ev.HasTimestamp() {
			ts, err := ev.Time()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
				return
			}
			storedAt = ts
		}

		outcome := engine.Decide(c.Request.Context(), ev)
		if !outcome.Admitted() {
			c.JSON(http.StatusOK, models.EventIngestResponse{
				Fingerprint: string(outcome.Fingerprint),
				Duplicate:   true,
				Reason:      string(outcome.Reason),
			})
			return
		}

		// Idempotency precedence:
		// 1) Idempotency-Key header (recommended for retries)
		// 2) event_id in payload
		// 3) generated UUID (fallback; cannot dedupe client retries)
		eventID := c.GetHeader("Idempotency-Key")
		if eventID == "" {
			eventID = req.EventID
		}
		if eventID == "" {
			eventID = uuid.New().String()
		}

		resp := models.EventIngestResponse{
			EventID:     eventID,
			Fingerprint: string(outcome.Fingerprint),
			Reason:      string(outcome.Reason),
		}

		if st != nil {
			inserted, err := st.InsertEvent(c.Request.Context(), eventID, outcome.Event, storedAt)
			if err != nil {
				log.Errorw("failed to store admitted event", "event_id", eventID, "tenant_id", tenantID,
					"fingerprint", outcome.Fingerprint, "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"error":       "db insert failed",
					"fingerprint": string(outcome.Fingerprint),
					"retry":       "identical events are suppressed for 1h; resend with a new timestamp",
				})
				return
			}
			if !inserted {
				resp.Duplicate = true
				resp.Reason = "event_id_exists"
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		c.JSON(http.StatusCreated, resp)
	})
}

// RegisterSearchRoutes registers the event query endpoint other deployments
// use as their remote history backend.
//
// GET /events?distinct_id=...&event=...&after=...&limit=...&cursor=...
// - Requires X-API-Key (tenant context); tenant_id, if given, must match it
// - Ordered by timestamp descending; order_by may only be "-timestamp"
// - Returns {results, next}; pass next back as cursor for the following page
func RegisterSearchRoutes(r gin.IRoutes, st EventStore) {
	r.GET("/events", func(c *gin.Context) {
		tenantID := auth.TenantID(c)
		if tenantID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !auth.SameTenant(c, c.Query("tenant_id")) {
			c.JSON(http.StatusForbidden, gin.H{"error": "tenant_id does not match API key"})
			return
		}
		if ob := c.Query("order_by"); ob != "" && ob != "-timestamp" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order_by must be -timestamp"})
			return
		}

		q := models.SearchQuery{
			TenantID:   tenantID,
			DistinctID: c.Query("distinct_id"),
			Event:      c.Query("event"),
			Cursor:     c.Query("cursor"),
		}

		if after := c.Query("after"); after != "" {
			ts, err := models.ParseTimestamp(after)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "after must be RFC3339"})
				return
			}
			q.After = ts
		}

		if limit := c.Query("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			q.Limit = n
		}

		page, err := st.Search(c.Request.Context(), q)
		if err != nil {
			if errors.Is(err, store.ErrInvalidCursor) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, page)
	})
}
