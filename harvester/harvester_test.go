package harvester

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/tidwall/gjson"

	"github.com/aluiziolira/go-harvest-wb/config"
	"github.com/aluiziolira/go-harvest-wb/models"
	"github.com/aluiziolira/go-harvest-wb/pipeline"
)

type collectingWriter struct {
	mu      sync.Mutex
	records []*models.Record
}

func (w *collectingWriter) Write(records []*models.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, records...)
	return nil
}

func (w *collectingWriter) Close() error    { return nil }
func (w *collectingWriter) Validate() error { return nil }

func (w *collectingWriter) snapshot() []*models.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*models.Record(nil), w.records...)
}

func TestRunEndToEnd(t *testing.T) {
	h, transport := newTestHarvester(t, func(cfg *config.Config) {
		cfg.PageSize = 3
	})

	registerSearchPages(transport, map[string]string{
		"1": searchPage(1, 2, 3),
	})
	transport.RegisterResponder("GET", "http://catalog.test/detail",
		func(req *http.Request) (*http.Response, error) {
			switch req.URL.Query().Get("nm") {
			case "1":
				return httpmock.NewStringResponse(http.StatusOK, detailPayload(1, 4.9)), nil
			case "2":
				return httpmock.NewStringResponse(http.StatusOK, detailPayload(2, 3.0)), nil
			default:
				return httpmock.NewStringResponse(http.StatusOK, `{"data":{"products":[]}}`), nil
			}
		})

	full := &collectingWriter{}
	filtered := &collectingWriter{}
	p := pipeline.NewPipeline(full, filtered)
	p.Start()

	result, err := h.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("pipeline close: %v", err)
	}

	if result.UniqueArticles != 3 {
		t.Fatalf("unique articles = %d, want 3", result.UniqueArticles)
	}
	if result.Pages != 1 {
		t.Fatalf("pages = %d, want 1", result.Pages)
	}
	if c := result.Counters; c.Full != 2 || c.Filtered != 1 || c.Empty != 1 || c.Failed != 0 {
		t.Fatalf("counters = %+v, want Full=2 Filtered=1 Empty=1 Failed=0", c)
	}
	if result.EndTime.Before(result.StartTime) {
		t.Fatal("end time precedes start time")
	}

	fullRecs := full.snapshot()
	filteredRecs := filtered.snapshot()
	if len(fullRecs) != 2 {
		t.Fatalf("full dataset holds %d records, want 2", len(fullRecs))
	}
	if len(filteredRecs) != 1 {
		t.Fatalf("filtered dataset holds %d records, want 1", len(filteredRecs))
	}

	// The filtered dataset carries the same record instance, not a copy.
	subset := false
	for _, rec := range fullRecs {
		if rec == filteredRecs[0] {
			subset = true
		}
	}
	if !subset {
		t.Fatal("filtered record is not a member of the full dataset")
	}
	if filteredRecs[0].Article == nil || *filteredRecs[0].Article != 1 {
		t.Fatalf("filtered record article = %v, want 1", filteredRecs[0].Article)
	}
}

func TestRunSurfacesPaginationFailure(t *testing.T) {
	h, transport := newTestHarvester(t, nil)
	transport.RegisterResponder("GET", "http://catalog.test/search",
		httpmock.NewStringResponder(http.StatusForbidden, "blocked"))

	full := &collectingWriter{}
	filtered := &collectingWriter{}
	p := pipeline.NewPipeline(full, filtered)
	p.Start()
	defer p.Close()

	result, err := h.Run(context.Background(), p)
	if err == nil {
		t.Fatal("expected pagination failure to surface")
	}
	if result == nil {
		t.Fatal("result must be non-nil even on failure")
	}
	if result.UniqueArticles != 0 || result.Counters.Full != 0 {
		t.Fatalf("result = %+v, want empty accounting", result)
	}
}

func TestProductListShapes(t *testing.T) {
	if got := productList(gjson.Parse(`{"data":{"products":[{"id":1},{"id":2}]}}`)); len(got) != 2 {
		t.Fatalf("nested shape yielded %d products, want 2", len(got))
	}
	if got := productList(gjson.Parse(`{"products":[{"id":1}]}`)); len(got) != 1 {
		t.Fatalf("flat shape yielded %d products, want 1", len(got))
	}
	if got := productList(gjson.Parse(`[{"id":1}]`)); len(got) != 1 {
		t.Fatalf("bare array yielded %d products, want 1", len(got))
	}
	if got := productList(gjson.Parse(`{"data":{}}`)); got != nil {
		t.Fatalf("shape without products yielded %v, want nil", got)
	}
}
