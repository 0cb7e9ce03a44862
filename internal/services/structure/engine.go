package structure

import (
	"fmt"

	"WaveScan/internal/domain/models"
)

// Engine evaluates candle series with a fixed parameter set. It is stateless
// and safe for concurrent use: no I/O, no clocks, no randomness.
type Engine struct {
	params Params
}

// NewEngine validates the parameter set and returns an engine.
func NewEngine(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("engine params: %w", err)
	}
	return &Engine{params: p}, nil
}

// Params returns a copy of the engine's parameter set.
func (e *Engine) Params() Params {
	return e.params
}

// Version returns the scoring version the engine was built with.
func (e *Engine) Version() string {
	return e.params.Version
}

// Score evaluates a series and returns its score bundle. The only error is a
// malformed series; insufficient history yields an all-zero bundle with an
// explanatory note instead.
func (e *Engine) Score(candles []models.Candle) (models.ScoreBundle, error) {
	if err := models.ValidateSeries(candles); err != nil {
		return models.ScoreBundle{}, err
	}
	return evaluate(candles, e.params).bundle, nil
}

// Analyze returns the score bundle together with the cage, indicator
// readings and pivots at every scale.
func (e *Engine) Analyze(symbol string, candles []models.Candle) (*models.Analysis, error) {
	if err := models.ValidateSeries(candles); err != nil {
		return nil, err
	}
	ev := evaluate(candles, e.params)
	if len(candles) < e.params.MinHistoryBars {
		// Scoring short-circuited; the descriptive fields are still useful.
		ev.atr = ATR(candles, e.params.ATRPeriod)
		ev.meso = Extract(candles, e.params.Meso, ev.atr)
		ev.cage = BuildCage(ev.meso, candles, ev.atr)
		ev.adx = RegimeADX(candles, e.params)
	}
	return &models.Analysis{
		Symbol:      symbol,
		Version:     e.params.Version,
		Bars:        len(candles),
		Score:       ev.bundle,
		Cage:        ev.cage,
		ATR:         ev.atr,
		ADX:         ev.adx,
		MacroPivots: Extract(candles, e.params.Macro, ev.atr),
		MesoPivots:  ev.meso,
		MicroPivots: Extract(candles, e.params.Micro, ev.atr),
	}, nil
}

// ExtractScale runs pivot extraction at one named scale over the whole
// series, using the full-series ATR for the swing floor.
func (e *Engine) ExtractScale(candles []models.Candle, scale models.Scale) ([]models.Pivot, error) {
	if err := models.ValidateSeries(candles); err != nil {
		return nil, err
	}
	sp, err := e.params.ForScale(scale)
	if err != nil {
		return nil, err
	}
	return Extract(candles, sp, ATR(candles, e.params.ATRPeriod)), nil
}
