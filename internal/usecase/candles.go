package usecase

import (
	"context"
	"fmt"
	"time"

	"WaveScan/internal/domain/models"
	domrepo "WaveScan/internal/domain/repository"
	pkgcache "WaveScan/pkg/cache"
)

// CandlesUseCase provides business logic for retrieving candle history.
// Repeat lookups within the TTL are served from the cache so a scan over a
// large universe does not hammer the upstream quote API.
type CandlesUseCase struct {
	source domrepo.CandleSource
	cache  pkgcache.Service
	ttl    time.Duration
}

func NewCandlesUseCase(source domrepo.CandleSource, cache pkgcache.Service, ttl time.Duration) *CandlesUseCase {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CandlesUseCase{source: source, cache: cache, ttl: ttl}
}

type GetCandlesParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetCandlesResult struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
	Count     int
	Candles   []models.Candle
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	p.Timeframe = domrepo.NormalizeTimeframe(string(p.Timeframe))
	if p.Limit <= 0 {
		p.Limit = 10000
	}
	if p.Limit > 50000 {
		p.Limit = 50000
	}

	candles, err := uc.source.GetCandles(ctx, p.Symbol, p.From.Unix(), p.To.Unix(), p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if len(candles) > p.Limit {
		// keep the most recent bars
		candles = candles[len(candles)-p.Limit:]
	}

	return &GetCandlesResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Count:     len(candles),
		Candles:   candles,
	}, nil
}

// GetDaily returns the trailing daily history for a symbol. Cached results
// are returned as-is; a miss goes to the source and refreshes the cache.
func (uc *CandlesUseCase) GetDaily(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if days <= 0 {
		days = 250
	}

	key := pkgcache.GenerateKeyWithParams("candles", symbol, domrepo.TF1d, days)
	if uc.cache != nil {
		var cs []models.Candle
		// Any cache failure is treated as a miss.
		if err := uc.cache.Get(ctx, key, &cs); err == nil {
			return cs, nil
		}
	}

	candles, err := uc.source.GetDailyCandles(ctx, symbol, days)
	if err != nil {
		return nil, fmt.Errorf("daily candles %s: %w", symbol, err)
	}

	if uc.cache != nil {
		_ = uc.cache.Set(ctx, key, candles, uc.ttl)
	}
	return candles, nil
}
