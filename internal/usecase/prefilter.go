package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"WaveScan/internal/domain/models"
	domsvc "WaveScan/internal/domain/service"
	svccache "WaveScan/internal/service/cache"
	pkgcache "WaveScan/pkg/cache"
)

// ErrUnknownVersion is returned when a request names a scoring version no
// engine was built for.
var ErrUnknownVersion = errors.New("unknown scoring version")

// PrefilterUseCase runs the structure engine over one symbol's daily history
// and memoizes the outcome. The score is deterministic for a given series and
// version, so for intraday use a short TTL is enough to absorb repeated
// dashboard polls.
type PrefilterUseCase struct {
	candles *CandlesUseCase
	engines map[string]domsvc.StructureAnalyzer
	defVer  string
	cache   svccache.BytesCache
	ttl     time.Duration
}

func NewPrefilterUseCase(
	candles *CandlesUseCase,
	engines map[string]domsvc.StructureAnalyzer,
	defaultVersion string,
	cache svccache.BytesCache,
	ttl time.Duration,
) *PrefilterUseCase {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PrefilterUseCase{
		candles: candles,
		engines: engines,
		defVer:  defaultVersion,
		cache:   cache,
		ttl:     ttl,
	}
}

type PrefilterParams struct {
	Symbol  string
	Days    int
	Version string
}

type PrefilterResult struct {
	Symbol  string             `json:"symbol"`
	Version string             `json:"version"`
	Days    int                `json:"days"`
	Bars    int                `json:"bars"`
	Cached  bool               `json:"cached"`
	Score   models.ScoreBundle `json:"score"`
	Cage    models.CageInfo    `json:"cage"`
}

// DefaultVersion reports the scoring version used when requests omit one.
func (uc *PrefilterUseCase) DefaultVersion() string { return uc.defVer }

func (uc *PrefilterUseCase) engineFor(version string) (domsvc.StructureAnalyzer, string, error) {
	if version == "" {
		version = uc.defVer
	}
	eng, ok := uc.engines[version]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownVersion, version)
	}
	return eng, version, nil
}

// Prefilter scores one symbol, consulting the memo cache first.
func (uc *PrefilterUseCase) Prefilter(ctx context.Context, p PrefilterParams) (*PrefilterResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Days <= 0 {
		p.Days = 250
	}
	eng, version, err := uc.engineFor(p.Version)
	if err != nil {
		return nil, err
	}

	key := pkgcache.GenerateKeyWithParams("prefilter", p.Symbol, p.Days, version)
	if uc.cache != nil {
		if b, ok, cerr := uc.cache.GetBytes(key); cerr == nil && ok {
			var res PrefilterResult
			if json.Unmarshal(b, &res) == nil {
				res.Cached = true
				return &res, nil
			}
		}
	}

	candles, err := uc.candles.GetDaily(ctx, p.Symbol, p.Days)
	if err != nil {
		return nil, err
	}
	an, err := eng.Analyze(p.Symbol, candles)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", p.Symbol, err)
	}

	res := &PrefilterResult{
		Symbol:  p.Symbol,
		Version: version,
		Days:    p.Days,
		Bars:    an.Bars,
		Score:   an.Score,
		Cage:    an.Cage,
	}
	if uc.cache != nil {
		if b, merr := json.Marshal(res); merr == nil {
			_ = uc.cache.SetBytes(key, b, uc.ttl)
		}
	}
	return res, nil
}

type PivotsParams struct {
	Symbol string
	Scale  string
	Days   int
}

type PivotsResult struct {
	Symbol string         `json:"symbol"`
	Scale  string         `json:"scale"`
	Bars   int            `json:"bars"`
	Pivots []models.Pivot `json:"pivots"`
}

// Pivots extracts the swing sequence for one symbol at a named scale. Never
// cached: extraction is cheap relative to the candle fetch, which already is.
func (uc *PrefilterUseCase) Pivots(ctx context.Context, p PivotsParams) (*PivotsResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Scale == "" {
		p.Scale = string(models.ScaleMeso)
	}
	if p.Days <= 0 {
		p.Days = 250
	}
	eng, _, err := uc.engineFor("")
	if err != nil {
		return nil, err
	}

	candles, err := uc.candles.GetDaily(ctx, p.Symbol, p.Days)
	if err != nil {
		return nil, err
	}
	pivots, err := eng.ExtractScale(candles, models.Scale(p.Scale))
	if err != nil {
		return nil, err
	}

	return &PivotsResult{
		Symbol: p.Symbol,
		Scale:  p.Scale,
		Bars:   len(candles),
		Pivots: pivots,
	}, nil
}

// Analyze returns the full engine output for one symbol without caching.
func (uc *PrefilterUseCase) Analyze(ctx context.Context, symbol string, days int, version string) (*models.Analysis, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if days <= 0 {
		days = 250
	}
	eng, _, err := uc.engineFor(version)
	if err != nil {
		return nil, err
	}
	candles, err := uc.candles.GetDaily(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	return eng.Analyze(symbol, candles)
}
