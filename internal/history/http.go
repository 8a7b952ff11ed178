package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/PratikDhanave/event-dedup-service/internal/logger"
	"github.com/PratikDhanave/event-dedup-service/internal/models"
)

// HTTPConfig configures the remote event-query client.
type HTTPConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	RetryMax int
}

// HTTPSearcher queries GET {BaseURL}/events of a remote event store.
type HTTPSearcher struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
}

// NewHTTPSearcher builds a Searcher backed by go-retryablehttp.
// 5xx answers and connection errors are retried up to cfg.RetryMax times.
func NewHTTPSearcher(cfg HTTPConfig, log *logger.Logger) *HTTPSearcher {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 50 * time.Millisecond
	client.RetryWaitMax = 500 * time.Millisecond
	client.Logger = leveledLogger{log}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	return &HTTPSearcher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

// Search performs one page request.
func (s *HTTPSearcher) Search(ctx context.Context, q models.SearchQuery) (*models.SearchPage, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.searchURL(q), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build event search request")
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// PassthroughErrorHandler may hand back the last response with the error.
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, errors.Wrap(err, "event search request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read event search response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrUnexpectedStatus, "status %d", resp.StatusCode)
	}

	var page models.SearchPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return &page, nil
}

// searchURL maps a query to ordering by timestamp descending with filters on
// distinct id and event name and a lower timestamp bound.
func (s *HTTPSearcher) searchURL(q models.SearchQuery) string {
	v := url.Values{}
	v.Set("tenant_id", q.TenantID)
	v.Set("order_by", "-timestamp")
	if q.DistinctID != "" {
		v.Set("distinct_id", q.DistinctID)
	}
	if q.Event != "" {
		v.Set("event", q.Event)
	}
	if !q.After.IsZero() {
		v.Set("after", models.FormatTimestamp(q.After))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}
	return fmt.Sprintf("%s/events?%s", s.baseURL, v.Encode())
}

// leveledLogger adapts the service logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log *logger.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warnw(msg, kv...) }
