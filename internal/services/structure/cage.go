package structure

import "WaveScan/internal/domain/models"

// BuildCage constructs the recent trend channel from a pivot sequence and
// checks the latest close against it. The lower boundary is the line through
// the two most recent low pivots; the upper boundary is the line through the
// two most recent high pivots, or flat at the single high when only one
// exists. Both boundaries are projected to the last bar.
//
// Needs at least two low pivots, the later one strictly after the earlier,
// plus one high pivot; anything less reports Exists=false. When the close
// escapes both boundaries at once the larger ATR-normalized violation wins.
// A zero atr makes every break strength 0.
func BuildCage(pivots []models.Pivot, candles []models.Candle, atr float64) models.CageInfo {
	var cage models.CageInfo
	if len(candles) == 0 {
		return cage
	}

	lows := filterPivots(pivots, models.PivotLow)
	highs := filterPivots(pivots, models.PivotHigh)
	if len(lows) < 2 || len(highs) < 1 {
		return cage
	}

	l1, l2 := lows[len(lows)-2], lows[len(lows)-1]
	if l2.Index <= l1.Index {
		return cage
	}

	lastIdx := len(candles) - 1
	lowerSlope := (l2.Price - l1.Price) / float64(l2.Index-l1.Index)
	cage.LowerBoundary = l2.Price + lowerSlope*float64(lastIdx-l2.Index)

	h2 := highs[len(highs)-1]
	cage.UpperBoundary = h2.Price
	if len(highs) >= 2 {
		h1 := highs[len(highs)-2]
		if h2.Index > h1.Index {
			upperSlope := (h2.Price - h1.Price) / float64(h2.Index-h1.Index)
			cage.UpperBoundary = h2.Price + upperSlope*float64(lastIdx-h2.Index)
		}
	}

	cage.Exists = true

	last := candles[lastIdx].Close
	upBreak, downBreak := 0.0, 0.0
	if last > cage.UpperBoundary {
		upBreak = last - cage.UpperBoundary
	}
	if last < cage.LowerBoundary {
		downBreak = cage.LowerBoundary - last
	}
	if upBreak == 0 && downBreak == 0 {
		return cage
	}

	cage.Broken = true
	dist := upBreak
	cage.BreakDirection = models.BreakUp
	if downBreak > upBreak {
		dist = downBreak
		cage.BreakDirection = models.BreakDown
	}
	if atr > 0 {
		cage.BreakStrengthATR = dist / atr
	}
	return cage
}
