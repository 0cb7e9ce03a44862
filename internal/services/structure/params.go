package structure

import (
	"fmt"

	"WaveScan/internal/domain/models"
)

// Engine versions. V02 adds bidirectional cage-break strength and the wave-3
// bonus; V01 is kept so historical scores stay comparable.
const (
	VersionV01 = "v0.1"
	VersionV02 = "v0.2"
)

// Raw-score denominators per version: the realistic maximum of the enabled
// components.
const (
	rawMaxV01 = 105.0
	rawMaxV02 = 115.0
)

// ScaleParams is one threshold tuple for the adaptive extractor.
type ScaleParams struct {
	Scale           models.Scale
	ThresholdPct    float64 // required retracement from the running extreme, percent
	MinBars         int     // minimum bars between confirmed pivots
	MinSwingATRMult float64 // absolute-move floor in ATR multiples
}

// Params carries every knob of the engine. Construct with DefaultParams and
// override; a zero Params does not validate.
type Params struct {
	Version string

	Macro ScaleParams
	Meso  ScaleParams
	Micro ScaleParams

	ATRPeriod      int
	ADXPeriod      int
	RegimeWindow   int // trailing bars fed to ADX for the regime hint
	QualityWindow  int // trailing bars re-extracted for the pivot-quality score
	MinHistoryBars int // below this the scorer short-circuits to zero

	AlternationPivots int // leading pivots walked by the alternation check

	QualityCountMin     int     // ideal pivot-count band, inclusive
	QualityCountMax     int
	QualityCountPenalty float64 // points lost per pivot outside the band
	ProminenceMin       float64 // median-prominence sweet spot, percent
	ProminenceMax       float64

	RatioTight float64 // proportionality leg-ratio bands
	RatioMid   float64
	RatioLoose float64

	BreakStrengthATR float64 // minimum ATR distance for a meaningful cage break
}

// DefaultParams returns the canonical v0.2 parameter set.
func DefaultParams() Params {
	return Params{
		Version:             VersionV02,
		Macro:               ScaleParams{Scale: models.ScaleMacro, ThresholdPct: 10, MinBars: 10, MinSwingATRMult: 3.0},
		Meso:                ScaleParams{Scale: models.ScaleMeso, ThresholdPct: 5, MinBars: 5, MinSwingATRMult: 1.5},
		Micro:               ScaleParams{Scale: models.ScaleMicro, ThresholdPct: 3, MinBars: 3, MinSwingATRMult: 1.0},
		ATRPeriod:           14,
		ADXPeriod:           14,
		RegimeWindow:        90,
		QualityWindow:       120,
		MinHistoryBars:      100,
		AlternationPivots:   10,
		QualityCountMin:     8,
		QualityCountMax:     15,
		QualityCountPenalty: 3,
		ProminenceMin:       3,
		ProminenceMax:       8,
		RatioTight:          3,
		RatioMid:            5,
		RatioLoose:          8,
		BreakStrengthATR:    0.8,
	}
}

// WithVersion returns a copy of p with the version replaced. Empty keeps the
// current version.
func (p Params) WithVersion(version string) Params {
	if version != "" {
		p.Version = version
	}
	return p
}

// ForScale returns the tuple for a named scale.
func (p Params) ForScale(scale models.Scale) (ScaleParams, error) {
	switch scale {
	case models.ScaleMacro:
		return p.Macro, nil
	case models.ScaleMeso:
		return p.Meso, nil
	case models.ScaleMicro:
		return p.Micro, nil
	default:
		return ScaleParams{}, fmt.Errorf("unknown scale %q", scale)
	}
}

// Validate rejects parameter sets the engine cannot run with.
func (p Params) Validate() error {
	if p.Version != VersionV01 && p.Version != VersionV02 {
		return fmt.Errorf("unknown engine version %q", p.Version)
	}
	for _, sp := range []ScaleParams{p.Macro, p.Meso, p.Micro} {
		if sp.ThresholdPct <= 0 {
			return fmt.Errorf("scale %s: threshold_pct must be > 0", sp.Scale)
		}
		if sp.MinBars <= 0 {
			return fmt.Errorf("scale %s: min_bars must be > 0", sp.Scale)
		}
		if sp.MinSwingATRMult < 0 {
			return fmt.Errorf("scale %s: min_swing_atr must be >= 0", sp.Scale)
		}
	}
	if p.ATRPeriod <= 0 || p.ADXPeriod <= 0 {
		return fmt.Errorf("indicator periods must be > 0")
	}
	if p.RegimeWindow <= 0 || p.QualityWindow <= 0 || p.MinHistoryBars <= 0 {
		return fmt.Errorf("windows must be > 0")
	}
	if p.QualityCountMin <= 0 || p.QualityCountMax < p.QualityCountMin {
		return fmt.Errorf("quality count band %d-%d invalid", p.QualityCountMin, p.QualityCountMax)
	}
	if p.RatioTight <= 0 || p.RatioMid < p.RatioTight || p.RatioLoose < p.RatioMid {
		return fmt.Errorf("ratio bands must be ascending and positive")
	}
	if p.BreakStrengthATR < 0 {
		return fmt.Errorf("break strength must be >= 0")
	}
	return nil
}
