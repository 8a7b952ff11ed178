package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-dedup-service/internal/auth"
	"github.com/PratikDhanave/event-dedup-service/internal/config"
	"github.com/PratikDhanave/event-dedup-service/internal/handlers"
	"github.com/PratikDhanave/event-dedup-service/internal/logger"
)

// Store is what the router needs from durable storage.
type Store interface {
	handlers.EventStore
	handlers.EventCounter
	Ping(ctx context.Context) error
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes. Store may be nil when the
// service runs without a database; the search and metrics routes are then absent.
type Deps struct {
	Engine handlers.Decider
	Store  Store
	Cache  Pinger
	Log    *logger.Logger
}

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready
// Authenticated: POST /events, GET /events, /metrics
func NewRouter(cfg config.Config, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Log))

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the DB and fingerprint cache are reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		checks := map[string]Pinger{"cache": deps.Cache}
		if deps.Store != nil {
			checks["db"] = deps.Store
		}
		for name, dep := range checks {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "dependency": name, "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Auth group enforces tenant context via X-API-Key.
	authGroup := r.Group("/")
	authGroup.Use(auth.APIKeyMiddleware(cfg.APIKeys))

	if deps.Store != nil {
		handlers.RegisterEventRoutes(authGroup, deps.Engine, deps.Store, deps.Log)
		handlers.RegisterSearchRoutes(authGroup, deps.Store)
		handlers.RegisterMetricRoutes(authGroup, deps.Store)
	} else {
		handlers.RegisterEventRoutes(authGroup, deps.Engine, nil, deps.Log)
	}

	return r
}

// requestLogger logs one line per request at debug level, and at warn for 5xx.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start),
			"tenant_id", auth.TenantID(c),
		}
		if status >= http.StatusInternalServerError {
			log.Warnw("request failed", fields...)
			return
		}
		log.Debugw("request", fields...)
	}
}
