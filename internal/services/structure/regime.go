package structure

import "WaveScan/internal/domain/models"

// ADX thresholds for the coarse regime hint.
const (
	adxTrending = 30.0
	adxRanging  = 20.0
)

// RegimeADX computes ADX over the trailing regime window.
func RegimeADX(candles []models.Candle, p Params) float64 {
	window := candles
	if len(window) > p.RegimeWindow {
		window = window[len(window)-p.RegimeWindow:]
	}
	return ADX(window, p.ADXPeriod)
}

// ClassifyRegime maps an ADX reading onto the regime hint. The band between
// the thresholds is deliberately unclear.
func ClassifyRegime(adx float64) models.RegimeHint {
	switch {
	case adx > adxTrending:
		return models.RegimeTrending
	case adx < adxRanging:
		return models.RegimeRanging
	default:
		return models.RegimeUnclear
	}
}
