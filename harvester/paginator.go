package harvester

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/aluiziolira/go-harvest-wb/parser"
)

// CollectIdentifiers walks the search endpoint page by page and returns the
// catalog identifiers deduplicated in first-seen order.
//
// Pagination stops on the first of: an empty page, a page repeating the
// previous page's identifier set (the cursor stopped advancing), a partial
// page (included), or the configured page ceiling (included). A surfaced
// fetch error aborts the run: without a catalog there is nothing to harvest.
func (h *Harvester) CollectIdentifiers(ctx context.Context) ([]int64, error) {
	var ordered []int64
	seen := make(map[int64]struct{})
	previous := make(map[int64]struct{})

	for page := 1; ; page++ {
		h.pageLimiter.Take()

		data, err := h.client.GetJSON(ctx, h.cfg.SearchURL, h.searchParams(page))
		if err != nil {
			return nil, fmt.Errorf("search page %d: %w", page, err)
		}

		products := productList(data)
		if len(products) == 0 {
			slog.Debug("pagination stopped: empty page", slog.Int("page", page))
			break
		}

		ids := pageIdentifiers(products)
		current := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			current[id] = struct{}{}
		}
		if len(current) > 0 && setsEqual(current, previous) {
			slog.Debug("pagination stopped: page repeats previous", slog.Int("page", page))
			break
		}

		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ordered = append(ordered, id)
		}
		h.pageCount.Add(1)

		if len(products) < h.cfg.PageSize {
			slog.Debug("pagination stopped: partial page",
				slog.Int("page", page),
				slog.Int("products", len(products)),
			)
			break
		}
		if page >= h.cfg.MaxPages {
			slog.Warn("pagination stopped: page ceiling reached", slog.Int("page", page))
			break
		}

		previous = current
	}

	return ordered, nil
}

// pageIdentifiers extracts the coercible identifiers of one page, in order.
func pageIdentifiers(products []gjson.Result) []int64 {
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		if id, ok := parser.Identifier(p); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func setsEqual(a, b map[int64]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}
