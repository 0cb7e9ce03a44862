package repository

import (
	"context"

	"WaveScan/internal/domain/models"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1d Timeframe = "1d"
	TF1w Timeframe = "1w"
)

// CandleSource provides read-only access to historical candles for scoring.
type CandleSource interface {
	GetDailyCandles(ctx context.Context, symbol string, days int) ([]models.Candle, error)
	GetCandles(ctx context.Context, symbol string, from, to int64, tf Timeframe) ([]models.Candle, error)
}
