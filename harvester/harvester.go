// Package harvester implements the resilient catalog harvest: a retrying
// fetch client, the search paginator, and the batched detail scheduler.
package harvester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/ratelimit"

	"github.com/aluiziolira/go-harvest-wb/config"
	"github.com/aluiziolira/go-harvest-wb/models"
	"github.com/aluiziolira/go-harvest-wb/pipeline"
)

// Harvester drives one harvest run end to end.
type Harvester struct {
	cfg     *config.Config
	client  *Client
	Metrics *Metrics

	pageLimiter  ratelimit.Limiter
	batchLimiter ratelimit.Limiter

	pageCount atomic.Int64
}

// New builds a harvester instance configured from cfg.
func New(cfg *config.Config) (*Harvester, error) {
	for name, raw := range map[string]string{"search url": cfg.SearchURL, "detail url": cfg.DetailURL} {
		parsed, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if parsed.Host == "" {
			return nil, fmt.Errorf("%s must include a host", name)
		}
	}

	metrics := NewMetrics()
	return &Harvester{
		cfg:          cfg,
		client:       NewClient(cfg, metrics),
		Metrics:      metrics,
		pageLimiter:  pacer(cfg.PageDelay),
		batchLimiter: pacer(cfg.BatchDelay),
	}, nil
}

// pacer builds a slack-free limiter admitting one event per interval, so
// pacing stays steady instead of bursting after idle stretches.
func pacer(interval time.Duration) ratelimit.Limiter {
	if interval <= 0 {
		return ratelimit.NewUnlimited()
	}
	return ratelimit.New(1, ratelimit.Per(interval), ratelimit.WithoutSlack)
}

// Client exposes the fetch client, mainly so callers can share it or tests
// can swap its transport.
func (h *Harvester) Client() *Client {
	return h.client
}

// Run executes a full harvest: pagination, batched detail fan-out,
// extraction, and filtering, streaming records into p as fetches settle.
// The returned result is non-nil even on failure so partial accounting
// survives an aborted run; records already streamed stay with the pipeline.
func (h *Harvester) Run(ctx context.Context, p *pipeline.Pipeline) (*models.HarvestResult, error) {
	result := &models.HarvestResult{StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
		result.Pages = int(h.pageCount.Load())
		result.RetryCount = int(h.client.RetryCount())
	}()

	ids, err := h.CollectIdentifiers(ctx)
	if err != nil {
		return result, fmt.Errorf("collect identifiers: %w", err)
	}
	result.UniqueArticles = len(ids)
	slog.Info("catalog collected",
		slog.Int("articles", len(ids)),
		slog.Int64("pages", h.pageCount.Load()),
	)

	result.Counters = h.FetchDetails(ctx, ids, func(rec *models.Record, filtered bool) {
		if err := p.Process(rec, filtered); err != nil && !errors.Is(err, pipeline.ErrPipelineClosed) {
			slog.Error("pipeline process error", slog.Any("error", err))
		}
	})
	return result, nil
}

func (h *Harvester) searchParams(page int) map[string]string {
	return map[string]string{
		"appType":   "1",
		"curr":      h.cfg.Currency,
		"dest":      strconv.Itoa(h.cfg.Destination),
		"lang":      h.cfg.Locale,
		"locale":    h.cfg.Locale,
		"query":     h.cfg.Query,
		"page":      strconv.Itoa(page),
		"resultset": "catalog",
		"sort":      h.cfg.Sort,
		"spp":       "0",
		"limit":     strconv.Itoa(h.cfg.PageSize),
	}
}

func (h *Harvester) detailParams(id int64) map[string]string {
	return map[string]string{
		"appType": "1",
		"curr":    h.cfg.Currency,
		"dest":    strconv.Itoa(h.cfg.Destination),
		"spp":     "0",
		"nm":      strconv.FormatInt(id, 10),
	}
}

// productList extracts the product sequence from a response, tolerating the
// shapes the API is known to answer with.
func productList(data gjson.Result) []gjson.Result {
	if v := data.Get("data.products"); v.IsArray() {
		return v.Array()
	}
	if v := data.Get("products"); v.IsArray() {
		return v.Array()
	}
	if data.IsArray() {
		return data.Array()
	}
	return nil
}
