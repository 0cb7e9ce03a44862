package structure

import (
	"WaveScan/internal/domain/models"
)

// Trend state while walking the series.
const (
	trendUp   = 1
	trendNone = 0
	trendDown = -1
)

// Extract runs the adaptive zigzag over candles with one scale's thresholds.
// A high pivot is confirmed when the retracement from the running high clears
// both the percentage threshold and the ATR-multiple floor, with at least
// MinBars bars since the last confirmed pivot; low pivots mirror that. The
// emitted pivot is the running extreme itself, not the bar that confirmed
// it, and its prominence is the retracement percentage that confirmed it.
//
// With a zero atr the ATR floor is disabled and gating is percent-only.
// Series shorter than MinBars yield no pivots, and boundary bars are never
// forced into the result.
func Extract(candles []models.Candle, sp ScaleParams, atr float64) []models.Pivot {
	if len(candles) == 0 || len(candles) < sp.MinBars {
		return nil
	}

	atrFloor := sp.MinSwingATRMult * atr

	var pivots []models.Pivot
	runHigh, runLow := 0, 0
	lastPivot := 0
	trend := trendNone

	for i := range candles {
		if candles[i].High > candles[runHigh].High {
			runHigh = i
		}
		if candles[i].Low < candles[runLow].Low {
			runLow = i
		}

		drop := candles[runHigh].High - candles[i].Low
		dropPct := drop / candles[runHigh].High * 100
		rise := candles[i].High - candles[runLow].Low
		risePct := rise / candles[runLow].Low * 100

		switch {
		case trend >= trendNone && dropPct >= sp.ThresholdPct && drop >= atrFloor && i-lastPivot >= sp.MinBars:
			pivots = append(pivots, models.Pivot{
				Index:      runHigh,
				Type:       models.PivotHigh,
				Price:      candles[runHigh].High,
				Date:       candles[runHigh].Date,
				Prominence: dropPct,
				Scale:      sp.Scale,
			})
			lastPivot = runHigh
			runLow = i
			trend = trendDown
		case trend <= trendNone && risePct >= sp.ThresholdPct && rise >= atrFloor && i-lastPivot >= sp.MinBars:
			pivots = append(pivots, models.Pivot{
				Index:      runLow,
				Type:       models.PivotLow,
				Price:      candles[runLow].Low,
				Date:       candles[runLow].Date,
				Prominence: risePct,
				Scale:      sp.Scale,
			})
			lastPivot = runLow
			runHigh = i
			trend = trendUp
		}
	}
	return pivots
}

// filterPivots keeps the pivots of one type, preserving order.
func filterPivots(pivots []models.Pivot, t models.PivotType) []models.Pivot {
	var out []models.Pivot
	for _, p := range pivots {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}
