package structure

import (
	"fmt"
	"math"
	"sort"

	"WaveScan/internal/domain/models"
)

// Component maximums of the raw structure score.
const (
	maxAlternation     = 30.0
	maxProportionality = 25.0
	maxPivotQuality    = 30.0
	maxCagePresence    = 20.0
	maxWave3Bonus      = 10.0
)

const (
	alternationPartial = 10.0

	propMid   = 15.0
	propLoose = 8.0

	qualityCountBase  = 20.0
	qualityProminence = 10.0
	qualityMinBars    = 30

	cageBase        = 10.0
	cageIntactBonus = 10.0
	cageBreakBonus  = 3.0

	minPivotsForScoring = 4
)

// evaluation is everything one pass over a series produces. Analyze reuses
// the intermediate products so nothing is computed twice.
type evaluation struct {
	bundle models.ScoreBundle
	cage   models.CageInfo
	meso   []models.Pivot
	atr    float64
	adx    float64
}

// evaluate runs the full structure scoring pass. The caller has already
// validated the series. Notes are appended in a fixed order so identical
// input always yields an identical bundle.
func evaluate(candles []models.Candle, p Params) evaluation {
	var ev evaluation
	ev.bundle.RegimeHint = models.RegimeUnclear

	if len(candles) < p.MinHistoryBars {
		ev.bundle.Notes = []string{
			fmt.Sprintf("insufficient data: %d bars, need %d", len(candles), p.MinHistoryBars),
		}
		return ev
	}

	ev.atr = ATR(candles, p.ATRPeriod)
	ev.meso = Extract(candles, p.Meso, ev.atr)
	ev.cage = BuildCage(ev.meso, candles, ev.atr)
	ev.adx = RegimeADX(candles, p)

	alt, altNote := alternationScore(ev.meso, p.AlternationPivots)
	prop, propNote := proportionalityScore(ev.meso, p)
	qual, qualNotes := pivotQualityScore(candles, p)
	cageSc, cageNote := cageScore(ev.cage, p)

	w3 := 0.0
	w3Note := ""
	if p.Version != VersionV01 {
		w3, w3Note = wave3Bonus(ev.meso)
	}

	raw := alt + prop + qual + cageSc + w3
	denom := rawMaxV02
	if p.Version == VersionV01 {
		denom = rawMaxV01
	}

	notes := []string{altNote, propNote}
	notes = append(notes, qualNotes...)
	notes = append(notes, cageNote)
	if w3Note != "" {
		notes = append(notes, w3Note)
	}
	regime := ClassifyRegime(ev.adx)
	notes = append(notes, fmt.Sprintf("regime: adx %.1f -> %s", ev.adx, regime))

	ev.bundle = models.ScoreBundle{
		StructureScore:       int(math.Round(raw / denom * 100)),
		RawStructureScore:    raw,
		AlternationScore:     alt,
		ProportionalityScore: prop,
		PivotQualityScore:    qual,
		CagePresenceScore:    cageSc,
		Wave3Bonus:           w3,
		RegimeHint:           regime,
		Notes:                notes,
	}
	return ev
}

// alternationScore checks that pivot types strictly alternate over the first
// n pivots. Full marks when unbroken, fixed partial credit on a violation,
// zero when fewer than four pivots exist.
func alternationScore(pivots []models.Pivot, n int) (float64, string) {
	if len(pivots) < minPivotsForScoring {
		return 0, fmt.Sprintf("alternation: %d pivots, need %d", len(pivots), minPivotsForScoring)
	}
	if n > len(pivots) {
		n = len(pivots)
	}
	for i := 1; i < n; i++ {
		if pivots[i].Type == pivots[i-1].Type {
			return alternationPartial, fmt.Sprintf("alternation: broken at pivot %d", i)
		}
	}
	return maxAlternation, fmt.Sprintf("alternation: intact over %d pivots", n)
}

// legPcts returns the percentage magnitude of each consecutive
// pivot-to-pivot leg, relative to the leg's starting price.
func legPcts(pivots []models.Pivot) []float64 {
	if len(pivots) < 2 {
		return nil
	}
	out := make([]float64, 0, len(pivots)-1)
	for i := 1; i < len(pivots); i++ {
		prev := pivots[i-1].Price
		out = append(out, math.Abs(pivots[i].Price-prev)/prev*100)
	}
	return out
}

// proportionalityScore rates how evenly sized the legs are via the max/min
// leg ratio. Wildly disproportionate legs point to noise rather than wave
// structure. A zero-size smallest leg is degenerate and scores zero.
func proportionalityScore(pivots []models.Pivot, p Params) (float64, string) {
	if len(pivots) < minPivotsForScoring {
		return 0, fmt.Sprintf("proportionality: %d pivots, need %d", len(pivots), minPivotsForScoring)
	}
	legs := legPcts(pivots)
	minLeg, maxLeg := legs[0], legs[0]
	for _, l := range legs[1:] {
		if l < minLeg {
			minLeg = l
		}
		if l > maxLeg {
			maxLeg = l
		}
	}
	if minLeg == 0 {
		return 0, "proportionality: degenerate zero-size leg"
	}
	ratio := maxLeg / minLeg
	switch {
	case ratio <= p.RatioTight:
		return maxProportionality, fmt.Sprintf("proportionality: leg ratio %.2f <= %.0f", ratio, p.RatioTight)
	case ratio <= p.RatioMid:
		return propMid, fmt.Sprintf("proportionality: leg ratio %.2f <= %.0f", ratio, p.RatioMid)
	case ratio <= p.RatioLoose:
		return propLoose, fmt.Sprintf("proportionality: leg ratio %.2f <= %.0f", ratio, p.RatioLoose)
	default:
		return 0, fmt.Sprintf("proportionality: leg ratio %.2f too wide", ratio)
	}
}

// pivotQualityScore re-extracts at meso scale over the trailing quality
// window with that window's own ATR, then rates the pivot count against the
// ideal band. A median prominence inside the sweet spot earns a bonus.
func pivotQualityScore(candles []models.Candle, p Params) (float64, []string) {
	window := candles
	if len(window) > p.QualityWindow {
		window = window[len(window)-p.QualityWindow:]
	}
	if len(window) < qualityMinBars {
		return 0, []string{fmt.Sprintf("pivot quality: window %d bars, need %d", len(window), qualityMinBars)}
	}

	watr := ATR(window, p.ATRPeriod)
	wp := Extract(window, p.Meso, watr)
	count := len(wp)

	score := qualityCountBase
	switch {
	case count < p.QualityCountMin:
		score -= float64(p.QualityCountMin-count) * p.QualityCountPenalty
	case count > p.QualityCountMax:
		score -= float64(count-p.QualityCountMax) * p.QualityCountPenalty
	}
	if score < 0 {
		score = 0
	}
	notes := []string{fmt.Sprintf("pivot quality: %d pivots in window", count)}

	if count > 0 {
		med := medianProminence(wp)
		if med >= p.ProminenceMin && med <= p.ProminenceMax {
			score += qualityProminence
			notes = append(notes, fmt.Sprintf("pivot quality: median prominence %.2f%% in band", med))
		} else {
			notes = append(notes, fmt.Sprintf("pivot quality: median prominence %.2f%% outside band", med))
		}
	}
	return score, notes
}

// medianProminence is the median of the pivots' prominences; for an even
// count it averages the middle two.
func medianProminence(pivots []models.Pivot) float64 {
	if len(pivots) == 0 {
		return 0
	}
	ps := make([]float64, len(pivots))
	for i, p := range pivots {
		ps[i] = p.Prominence
	}
	sort.Float64s(ps)
	mid := len(ps) / 2
	if len(ps)%2 == 1 {
		return ps[mid]
	}
	return (ps[mid-1] + ps[mid]) / 2
}

// cageScore maps the channel observation onto points. V01 predates the
// break-strength refinement: there any break keeps the base credit.
func cageScore(cage models.CageInfo, p Params) (float64, string) {
	if !cage.Exists {
		return 0, "cage: no channel, need 2 lows and a high"
	}
	if !cage.Broken {
		return cageBase + cageIntactBonus, "cage: channel intact"
	}
	if p.Version == VersionV01 {
		return cageBase, fmt.Sprintf("cage: channel broken %s", cage.BreakDirection)
	}
	if cage.BreakStrengthATR >= p.BreakStrengthATR {
		return cageBase + cageBreakBonus,
			fmt.Sprintf("cage: strong %s break %.2f atr", cage.BreakDirection, cage.BreakStrengthATR)
	}
	return cageBase, fmt.Sprintf("cage: weak %s break %.2f atr", cage.BreakDirection, cage.BreakStrengthATR)
}

// wave3Bonus inspects the last three rising legs and withholds the bonus
// only when the middle one is strictly the shortest. Fewer than three legs
// cannot falsify the condition and score zero without any comparison.
func wave3Bonus(pivots []models.Pivot) (float64, string) {
	legs := risingLegs(pivots)
	if len(legs) < 3 {
		return 0, fmt.Sprintf("wave3: %d rising legs, need 3", len(legs))
	}
	a := legs[len(legs)-3]
	b := legs[len(legs)-2]
	c := legs[len(legs)-1]
	if b < a && b < c {
		return 0, "wave3: middle leg shortest"
	}
	return maxWave3Bonus, "wave3: middle leg holds"
}

// risingLegs collects the percentage magnitudes of consecutive low-to-high
// pivot pairs.
func risingLegs(pivots []models.Pivot) []float64 {
	var legs []float64
	for i := 1; i < len(pivots); i++ {
		if pivots[i-1].Type == models.PivotLow && pivots[i].Type == models.PivotHigh {
			low := pivots[i-1].Price
			legs = append(legs, (pivots[i].Price-low)/low*100)
		}
	}
	return legs
}
