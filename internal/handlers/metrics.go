package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-dedup-service/internal/auth"
)

// EventCounter counts stored events. Only admitted events are ever stored.
type EventCounter interface {
	CountEvents(ctx context.Context, tenantID, eventName string, from, to time.Time) (int64, error)
}

// RegisterMetricRoutes registers the serving-path endpoint.
//
// GET /metrics?event=...&from=...&to=...
// - Requires X-API-Key (tenant context)
// - Returns the number of admitted events for the window [from,to); events the
//   dedup engine suppressed were never stored and are not counted
// - event_name is accepted as an alias of event
func RegisterMetricRoutes(r gin.IRoutes, st EventCounter) {
	r.GET("/metrics", func(c *gin.Context) {
		tenantID := auth.TenantID(c)
		if tenantID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		eventName := c.Query("event")
		if eventName == "" {
			eventName = c.Query("event_name")
		}
		fromStr := c.Query("from")
		toStr := c.Query("to")

		if eventName == "" || fromStr == "" || toStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event, from, to are required"})
			return
		}

		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}

		from = from.UTC()
		to = to.UTC()

		// Validate window to avoid confusing results.
		if !from.Before(to) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be < to"})
			return
		}

		count, err := st.CountEvents(c.Request.Context(), tenantID, eventName, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"event":          eventName,
			"from":           from,
			"to":             to,
			"count":          count,
			"admitted_count": count,
		})
	})
}
