package repository

import (
	"context"
	"time"

	"WaveScan/internal/domain/models"
)

type QuoteStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan *models.QuoteTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Publisher interface {
	Publish(ctx context.Context, e *models.ScanEvent) error
	PublishBatch(ctx context.Context, events []*models.ScanEvent) error
	Close() error
}

type ResultStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, r *models.ScanResult) error
	StoreBatch(ctx context.Context, results []*models.ScanResult) error
	ScanResults(ctx context.Context, scanID string, limit int) ([]*models.ScanResult, error)
	TopSymbols(ctx context.Context, limit int, minScore int, since time.Time) ([]*models.ScanResult, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordResultStored(backend, symbol string)
	RecordError(kind string)
	RecordStructureScore(symbol string, score float64)
	RecordLatency(op string, seconds float64)
}
