package usecase

import (
	"context"
	"fmt"
	"time"

	"WaveScan/internal/domain/models"
	drepo "WaveScan/internal/domain/repository"
)

// ResultProcessor routes finished scan results to the configured backend.
// Kafka gets the compact event form for downstream consumers; ClickHouse
// keeps the full row for later queries.
type ResultProcessor struct {
	pub     drepo.Publisher
	store   drepo.ResultStore
	metrics drepo.Metrics
	backend string
}

// NewResultProcessor creates a new ResultProcessor instance.
func NewResultProcessor(
	pub drepo.Publisher,
	store drepo.ResultStore,
	metrics drepo.Metrics,
	backend string,
) *ResultProcessor {
	return &ResultProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

func eventFrom(r *models.ScanResult) *models.ScanEvent {
	return &models.ScanEvent{
		ScanID:         r.ScanID,
		Symbol:         r.Symbol,
		StructureScore: r.Score.StructureScore,
		Regime:         string(r.Score.RegimeHint),
		Timestamp:      r.CreatedAt.Unix(),
	}
}

// Process routes a single scan result to the configured backend.
func (p *ResultProcessor) Process(ctx context.Context, r *models.ScanResult) error {
	if r == nil {
		return fmt.Errorf("result is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, eventFrom(r))
	case "clickhouse":
		err = p.store.Store(ctx, r)
	case "both":
		if err = p.store.Store(ctx, r); err == nil {
			err = p.pub.Publish(ctx, eventFrom(r))
		}
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process result: %w", err)
	}

	p.metrics.RecordResultStored(p.backend, r.Symbol)
	if r.Err == "" {
		p.metrics.RecordStructureScore(r.Symbol, float64(r.Score.StructureScore))
	}
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	return nil
}

// ProcessBatch routes multiple scan results in one backend call.
func (p *ResultProcessor) ProcessBatch(ctx context.Context, results []*models.ScanResult) error {
	if len(results) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, eventsFrom(results))
	case "clickhouse":
		err = p.store.StoreBatch(ctx, results)
	case "both":
		if err = p.store.StoreBatch(ctx, results); err == nil {
			err = p.pub.PublishBatch(ctx, eventsFrom(results))
		}
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, r := range results {
		p.metrics.RecordResultStored(p.backend, r.Symbol)
		if r.Err == "" {
			p.metrics.RecordStructureScore(r.Symbol, float64(r.Score.StructureScore))
		}
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

func eventsFrom(results []*models.ScanResult) []*models.ScanEvent {
	evs := make([]*models.ScanEvent, 0, len(results))
	for _, r := range results {
		evs = append(evs, eventFrom(r))
	}
	return evs
}

// Close closes underlying resources if available.
func (p *ResultProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
