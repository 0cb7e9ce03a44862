package structure

import (
	"time"

	"WaveScan/internal/domain/models"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func bar(i int, price float64) models.Candle {
	return models.Candle{
		Date:   day(i),
		Open:   price,
		High:   price * 1.001,
		Low:    price * 0.999,
		Close:  price,
		Volume: 1000,
	}
}

func flatSeries(n int, price float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = bar(i, price)
	}
	return out
}

// rampSeries climbs one point per bar.
func rampSeries(n int, start float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = bar(i, start+float64(i))
	}
	return out
}

// sawtoothSeries oscillates between lo and lo*(1+swingPct/100) with legs of
// legBars bars each, drifting up by driftPct percent per full cycle.
func sawtoothSeries(n int, lo, swingPct, driftPct float64, legBars int) []models.Candle {
	out := make([]models.Candle, n)
	period := 2 * legBars
	for i := range out {
		cycle := i / period
		phase := i % period
		base := lo
		for c := 0; c < cycle; c++ {
			base *= 1 + driftPct/100
		}
		hi := base * (1 + swingPct/100)
		nextBase := base * (1 + driftPct/100)
		var price float64
		if phase <= legBars {
			price = base + (hi-base)*float64(phase)/float64(legBars)
		} else {
			price = hi - (hi-nextBase)*float64(phase-legBars)/float64(legBars)
		}
		out[i] = bar(i, price)
	}
	return out
}
