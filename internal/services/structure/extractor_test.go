package structure

import (
	"reflect"
	"testing"

	"WaveScan/internal/domain/models"
)

func mesoParams() ScaleParams {
	return DefaultParams().Meso
}

func TestExtractShortSeries(t *testing.T) {
	sp := ScaleParams{Scale: models.ScaleMeso, ThresholdPct: 5, MinBars: 5, MinSwingATRMult: 1.5}
	got := Extract(flatSeries(3, 100), sp, 0)
	if len(got) != 0 {
		t.Fatalf("expected no pivots, got %d", len(got))
	}
}

func TestExtractFlatSeries(t *testing.T) {
	got := Extract(flatSeries(200, 100), mesoParams(), 0.2)
	if len(got) != 0 {
		t.Fatalf("flat series produced %d pivots", len(got))
	}
}

func TestExtractSawtoothAlternates(t *testing.T) {
	series := sawtoothSeries(200, 100, 8, 0, 10)
	atr := ATR(series, 14)
	pivots := Extract(series, mesoParams(), atr)
	if len(pivots) < 8 {
		t.Fatalf("expected at least 8 pivots, got %d", len(pivots))
	}
	for i := 1; i < len(pivots); i++ {
		if pivots[i].Type == pivots[i-1].Type {
			t.Fatalf("pivots %d and %d share type %s", i-1, i, pivots[i].Type)
		}
		if pivots[i].Index <= pivots[i-1].Index {
			t.Fatalf("pivot indexes not increasing at %d", i)
		}
	}
	for _, p := range pivots {
		if p.Prominence < mesoParams().ThresholdPct {
			t.Fatalf("prominence %.2f below threshold", p.Prominence)
		}
		if p.Scale != models.ScaleMeso {
			t.Fatalf("unexpected scale %s", p.Scale)
		}
		if p.Date != series[p.Index].Date {
			t.Fatalf("pivot date does not match its bar")
		}
	}
}

func TestExtractPivotIsRunningExtreme(t *testing.T) {
	series := sawtoothSeries(200, 100, 8, 0, 10)
	pivots := Extract(series, mesoParams(), ATR(series, 14))
	for _, p := range pivots {
		switch p.Type {
		case models.PivotHigh:
			if p.Price != series[p.Index].High {
				t.Fatalf("high pivot price %.4f != bar high %.4f", p.Price, series[p.Index].High)
			}
		case models.PivotLow:
			if p.Price != series[p.Index].Low {
				t.Fatalf("low pivot price %.4f != bar low %.4f", p.Price, series[p.Index].Low)
			}
		}
	}
}

func TestExtractThresholdMonotonic(t *testing.T) {
	series := sawtoothSeries(200, 100, 8, 2, 10)
	atr := ATR(series, 14)
	prev := -1
	for _, th := range []float64{3, 5, 8, 12} {
		sp := ScaleParams{Scale: models.ScaleMeso, ThresholdPct: th, MinBars: 5, MinSwingATRMult: 1.5}
		n := len(Extract(series, sp, atr))
		if prev >= 0 && n > prev {
			t.Fatalf("threshold %.0f produced %d pivots, more than %d", th, n, prev)
		}
		prev = n
	}
}

func TestExtractATRFloor(t *testing.T) {
	series := sawtoothSeries(200, 100, 8, 0, 10)
	atr := ATR(series, 14)

	loose := ScaleParams{Scale: models.ScaleMeso, ThresholdPct: 5, MinBars: 5, MinSwingATRMult: 1.5}
	if len(Extract(series, loose, atr)) == 0 {
		t.Fatalf("expected pivots with normal floor")
	}

	strict := ScaleParams{Scale: models.ScaleMeso, ThresholdPct: 5, MinBars: 5, MinSwingATRMult: 50}
	if n := len(Extract(series, strict, atr)); n != 0 {
		t.Fatalf("expected ATR floor to suppress pivots, got %d", n)
	}

	// A zero ATR disables the floor entirely.
	if len(Extract(series, strict, 0)) == 0 {
		t.Fatalf("expected percent-only gating with zero atr")
	}
}

func TestExtractMinBarsSpacing(t *testing.T) {
	series := sawtoothSeries(200, 100, 8, 0, 10)
	sp := mesoParams()
	pivots := Extract(series, sp, ATR(series, 14))
	for i := 1; i < len(pivots); i++ {
		if pivots[i].Index-pivots[i-1].Index < sp.MinBars {
			t.Fatalf("pivots %d bars apart, want >= %d", pivots[i].Index-pivots[i-1].Index, sp.MinBars)
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	series := sawtoothSeries(200, 100, 8, 2, 10)
	atr := ATR(series, 14)
	a := Extract(series, mesoParams(), atr)
	b := Extract(series, mesoParams(), atr)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("extraction is not deterministic")
	}
}
