// Package pipeline streams canonical records into the full and filtered
// output datasets.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-harvest-wb/models"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when Close gives up waiting for
	// the worker to drain.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

// drainTimeout bounds how long Close waits for pending writes. Variable so
// tests can shrink it.
var drainTimeout = 30 * time.Second

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.Record) error
	Close() error
	Validate() error
}

type entry struct {
	record   *models.Record
	filtered bool
}

// Pipeline coordinates batching and output writing for the two datasets.
// Every filtered record is the same record already appended to the full
// dataset; the filtered stream is never independently sourced.
type Pipeline struct {
	full      OutputWriter
	filtered  OutputWriter
	entryCh   chan entry
	batchSize int

	wg sync.WaitGroup

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	startOnce    sync.Once
	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline writing to the full and filtered datasets.
func NewPipeline(full, filtered OutputWriter) *Pipeline {
	return &Pipeline{
		full:      full,
		filtered:  filtered,
		entryCh:   make(chan entry, 512),
		batchSize: 64,
		shutdown:  make(chan struct{}),
	}
}

// Start launches the consumer. A single worker keeps both datasets in
// arrival order; detail-fetch completions may race to Process concurrently.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.worker()
	})
}

// Process enqueues one record for the full dataset and, when filtered is
// set, for the filtered dataset as well.
func (p *Pipeline) Process(rec *models.Record, filtered bool) error {
	if rec == nil {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	return p.enqueue(entry{record: rec, filtered: filtered})
}

// Close drains pending records and prevents more submissions. The output
// writers themselves stay open; the caller owns their lifecycle.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.entryCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		return ErrPipelineCloseTimeout
	}
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				snapshot := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Any("processed", snapshot["processed_records"]),
					slog.Any("filtered", snapshot["filtered_records"]),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	fullBatch := make([]*models.Record, 0, p.batchSize)
	filteredBatch := make([]*models.Record, 0, p.batchSize)

	flush := func() error {
		if len(fullBatch) > 0 {
			if err := p.full.Write(fullBatch); err != nil {
				return fmt.Errorf("write full batch: %w", err)
			}
			fullBatch = fullBatch[:0]
		}
		if len(filteredBatch) > 0 {
			if err := p.filtered.Write(filteredBatch); err != nil {
				return fmt.Errorf("write filtered batch: %w", err)
			}
			filteredBatch = filteredBatch[:0]
		}
		return nil
	}

	for e := range p.entryCh {
		fullBatch = append(fullBatch, e.record)
		p.metrics.incrementProcessed()
		if e.filtered {
			filteredBatch = append(filteredBatch, e.record)
			p.metrics.incrementFiltered()
		}
		if len(fullBatch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(err)
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(err)
	}
}

func (p *Pipeline) enqueue(e entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case p.entryCh <- e:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.entryCh)
	})
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu        sync.Mutex
	processed int64
	filtered  int64
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) incrementFiltered() {
	m.mu.Lock()
	m.filtered++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]interface{}{
		"processed_records": m.processed,
		"filtered_records":  m.filtered,
	}
}
