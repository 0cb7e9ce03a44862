package structure

import (
	"math"

	"WaveScan/internal/domain/models"
)

// adxNeutral is reported when the series is too short for a directional
// reading. 25 sits between the regime thresholds so short series classify as
// unclear, never as trending or ranging.
const adxNeutral = 25.0

// TrueRange computes the true range of a bar given the previous close.
func TrueRange(c models.Candle, prevClose float64) float64 {
	tr := c.High - c.Low
	if hc := math.Abs(c.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(c.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}

// ATR is the simple moving average of the true range over the trailing
// period bars. Deliberately not Wilder-smoothed. Returns 0 when fewer than
// period+1 bars are available.
func ATR(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += TrueRange(candles[i], candles[i-1].Close)
	}
	return sum / float64(period)
}

// ADX approximates the Average Directional Index. Directional movement and
// true range are Wilder-smoothed into DI+ and DI-, and the resulting DX
// values are averaged over the supplied window. Returns the neutral reading
// when fewer than 2*period bars are available.
func ADX(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < 2*period {
		return adxNeutral
	}

	n := len(candles) - 1
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < len(candles); i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
		tr[i-1] = TrueRange(candles[i], candles[i-1].Close)
	}

	// Wilder smoothing: seed with the first period sum, then
	// s = s - s/period + x.
	sPlus := sumFloats(plusDM[:period])
	sMinus := sumFloats(minusDM[:period])
	sTR := sumFloats(tr[:period])

	dxSum := 0.0
	dxCount := 0
	for i := period; i < n; i++ {
		sPlus = sPlus - sPlus/float64(period) + plusDM[i]
		sMinus = sMinus - sMinus/float64(period) + minusDM[i]
		sTR = sTR - sTR/float64(period) + tr[i]
		if sTR == 0 {
			continue
		}
		diPlus := 100 * sPlus / sTR
		diMinus := 100 * sMinus / sTR
		if diPlus+diMinus == 0 {
			continue
		}
		dxSum += 100 * math.Abs(diPlus-diMinus) / (diPlus + diMinus)
		dxCount++
	}
	if dxCount == 0 {
		return adxNeutral
	}
	return dxSum / float64(dxCount)
}

func sumFloats(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}
