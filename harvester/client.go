package harvester

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"
	"resty.dev/v3"

	"github.com/aluiziolira/go-harvest-wb/config"
)

const bodySampleLimit = 512

// Client issues single logical GET-with-JSON calls against the upstream API.
// It enforces a shared in-flight permit pool, bounded retries with jittered
// exponential backoff, and outcome classification. It never interprets the
// query parameters it is given.
type Client struct {
	cfg     *config.Config
	http    *resty.Client
	permits *semaphore.Weighted
	metrics *Metrics

	retries atomic.Int64
}

// NewClient builds a fetch client. The permit pool bounds simultaneous
// network calls across every caller sharing this client; retries are handled
// by the attempt loop here, not by the transport.
func NewClient(cfg *config.Config, metrics *Metrics) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent)

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		permits: semaphore.NewWeighted(int64(cfg.Concurrency)),
		metrics: metrics,
	}
}

// SetTransport swaps the underlying HTTP transport. Tests install a mock
// transport here.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}

// RetryCount returns the total number of retry attempts performed so far.
func (c *Client) RetryCount() int64 {
	return c.retries.Load()
}

// GetJSON performs the attempt loop for one logical fetch. On success it
// returns the parsed JSON tree; once the attempt budget is exhausted or a
// fatal status arrives, it surfaces a *FetchError wrapping the last outcome.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params map[string]string) (gjson.Result, error) {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		attempts = attempt
		data, retryAfter, err := c.attempt(ctx, endpoint, params)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if attempt == c.cfg.MaxAttempts || !retryable(err) {
			break
		}

		delay := c.retryDelay(attempt, retryAfter)
		c.retries.Add(1)
		c.metrics.IncRetries()
		slog.Debug("retrying request",
			slog.String("url", endpoint),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = c.cfg.MaxAttempts
		case <-time.After(delay):
		}
	}

	c.metrics.IncError(errorTypeLabel(lastErr))
	return gjson.Result{}, &FetchError{URL: endpoint, Attempts: attempts, Err: lastErr}
}

// attempt performs one network call. The permit is held around the call
// only, never around backoff sleeps. The second return value carries a 429
// Retry-After hint, when present.
func (c *Client) attempt(ctx context.Context, endpoint string, params map[string]string) (gjson.Result, string, error) {
	if err := c.permits.Acquire(ctx, 1); err != nil {
		return gjson.Result{}, "", err
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(endpoint)
	c.permits.Release(1)

	c.metrics.IncRequest(c.endpointLabel(endpoint))
	c.metrics.ObserveDuration(time.Since(start))

	if err != nil {
		return gjson.Result{}, "", fmt.Errorf("get %s: %w", endpoint, err)
	}

	if resp.StatusCode() == http.StatusOK {
		body := resp.String()
		if emptyPayload(body) {
			return gjson.Result{}, "", ErrEmptyPayload
		}
		return gjson.Parse(body), "", nil
	}

	statusErr := &StatusError{Code: resp.StatusCode(), Body: truncate(resp.String(), bodySampleLimit)}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return gjson.Result{}, resp.Header().Get("Retry-After"), statusErr
	}
	return gjson.Result{}, "", statusErr
}

// retryDelay computes the sleep before the next attempt. A parseable
// Retry-After hint takes precedence; otherwise jitter is layered on the
// exponential backoff, evaluated fresh per retry.
func (c *Client) retryDelay(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.ParseFloat(retryAfter, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return c.backoff(attempt) + time.Duration(rand.Float64()*float64(c.cfg.Jitter))
}

// backoff is the deterministic part of the retry delay: the base doubled per
// attempt, clamped at the ceiling. attempt is 1-indexed.
func (c *Client) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := c.cfg.BaseDelay * time.Duration(1<<(attempt-1))
	if delay > c.cfg.MaxDelay || delay <= 0 {
		delay = c.cfg.MaxDelay
	}
	return delay
}

// emptyPayload reports whether a 200 body carried nothing usable: blank or
// malformed JSON, or a falsy top-level value (null, false, 0, "", empty
// container).
func emptyPayload(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || !gjson.Valid(trimmed) {
		return true
	}
	v := gjson.Parse(trimmed)
	switch v.Type {
	case gjson.Null, gjson.False:
		return true
	case gjson.Number:
		return v.Float() == 0
	case gjson.String:
		return v.String() == ""
	}
	if v.IsObject() || v.IsArray() {
		empty := true
		v.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		return empty
	}
	return false
}

func (c *Client) endpointLabel(endpoint string) string {
	if endpoint == c.cfg.SearchURL {
		return "search"
	}
	return "detail"
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
