package harvester

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/aluiziolira/go-harvest-wb/models"
	"github.com/aluiziolira/go-harvest-wb/parser"
)

// EmitFunc receives each canonical record as its detail fetch settles,
// together with the filter predicate's verdict.
type EmitFunc func(rec *models.Record, filtered bool)

type detailResult struct {
	id      int64
	payload gjson.Result
	found   bool
	err     error
}

// FetchDetails fans out one detail fetch per identifier in fixed-size
// batches. Within a batch every fetch runs concurrently — the client's
// permit pool is the only concurrency bound — and results are consumed in
// completion order. A failed fetch is counted and logged, never aborting its
// siblings or later batches, so a run with zero successes still drains and
// returns its counters.
func (h *Harvester) FetchDetails(ctx context.Context, ids []int64, emit EmitFunc) models.Counters {
	var counters models.Counters

	for start := 0; start < len(ids); start += h.cfg.BatchSize {
		h.batchLimiter.Take()

		batch := ids[start:min(start+h.cfg.BatchSize, len(ids))]
		results := make(chan detailResult, len(batch))

		var wg sync.WaitGroup
		for _, id := range batch {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				payload, found, err := h.fetchDetail(ctx, id)
				results <- detailResult{id: id, payload: payload, found: found, err: err}
			}(id)
		}
		go func() {
			wg.Wait()
			close(results)
		}()

		for res := range results {
			switch {
			case res.err != nil:
				counters.Failed++
				h.Metrics.IncRecord("failed")
				slog.Warn("detail fetch failed",
					slog.Int64("article", res.id),
					slog.Any("error", res.err),
				)
			case !res.found:
				counters.Empty++
				h.Metrics.IncRecord("empty")
			default:
				rec, chars := parser.Extract(res.payload)
				counters.Full++
				h.Metrics.IncRecord("full")

				filtered := parser.Keep(rec, chars)
				if filtered {
					counters.Filtered++
					h.Metrics.IncRecord("filtered")
				}
				emit(rec, filtered)
			}
		}

		slog.Debug("batch drained",
			slog.Int("size", len(batch)),
			slog.Int("full", counters.Full),
			slog.Int("empty", counters.Empty),
			slog.Int("failed", counters.Failed),
		)
	}

	return counters
}

// fetchDetail resolves one identifier. A response without products is an
// empty result, not an error.
func (h *Harvester) fetchDetail(ctx context.Context, id int64) (gjson.Result, bool, error) {
	data, err := h.client.GetJSON(ctx, h.cfg.DetailURL, h.detailParams(id))
	if err != nil {
		return gjson.Result{}, false, err
	}
	products := productList(data)
	if len(products) == 0 {
		return gjson.Result{}, false, nil
	}
	return products[0], true, nil
}
