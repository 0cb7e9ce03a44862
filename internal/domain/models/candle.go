package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedSeries marks candle input that violates the engine's
// preconditions. Upstream data is never healed, only rejected.
var ErrMalformedSeries = errors.New("malformed candle series")

// Candle represents one OHLCV bar of a daily price series.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Range returns the high-low spread of the bar.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// ValidateSeries checks the engine preconditions on a candle series:
// positive finite prices, low <= open,close <= high, non-negative volume,
// strictly ascending dates. The first violation is reported; gaps between
// dates are tolerated.
func ValidateSeries(candles []Candle) error {
	for i, c := range candles {
		if !finitePositive(c.Open) || !finitePositive(c.High) || !finitePositive(c.Low) || !finitePositive(c.Close) {
			return fmt.Errorf("%w: bar %d has non-positive or non-finite price", ErrMalformedSeries, i)
		}
		if c.Volume < 0 || math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) {
			return fmt.Errorf("%w: bar %d has invalid volume", ErrMalformedSeries, i)
		}
		if c.Low > c.Open || c.Low > c.Close || c.High < c.Open || c.High < c.Close {
			return fmt.Errorf("%w: bar %d breaks low <= open,close <= high", ErrMalformedSeries, i)
		}
		if i > 0 && !candles[i-1].Date.Before(c.Date) {
			return fmt.Errorf("%w: bar %d date %s not after bar %d", ErrMalformedSeries, i, c.Date.Format("2006-01-02"), i-1)
		}
	}
	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
