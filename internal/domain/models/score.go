package models

// RegimeHint is the coarse ADX-derived classification of price behavior.
type RegimeHint string

const (
	RegimeTrending RegimeHint = "trending"
	RegimeRanging  RegimeHint = "ranging"
	RegimeUnclear  RegimeHint = "unclear"
)

// Break directions reported by CageInfo.
const (
	BreakUp   = "up"
	BreakDown = "down"
)

// CageInfo describes the trend channel built from the most recent pivots
// and whether the latest close sits outside it. Recomputed from scratch on
// every invocation.
type CageInfo struct {
	Exists           bool    `json:"exists"`
	Broken           bool    `json:"broken"`
	BreakDirection   string  `json:"break_direction,omitempty"`
	BreakStrengthATR float64 `json:"break_strength_atr"`
	UpperBoundary    float64 `json:"upper_boundary"`
	LowerBoundary    float64 `json:"lower_boundary"`
}

// ScoreBundle is the stable per-call output of the structure scorer. Given
// identical candles and parameters it is byte-for-byte reproducible.
type ScoreBundle struct {
	StructureScore       int        `json:"structure_score"`
	RawStructureScore    float64    `json:"raw_structure_score"`
	AlternationScore     float64    `json:"alternation_score"`
	ProportionalityScore float64    `json:"proportionality_score"`
	PivotQualityScore    float64    `json:"pivot_quality_score"`
	CagePresenceScore    float64    `json:"cage_presence_score"`
	Wave3Bonus           float64    `json:"wave3_bonus"`
	RegimeHint           RegimeHint `json:"regime_hint"`
	Notes                []string   `json:"notes"`
}

// Analysis is the full per-symbol engine output: the score bundle plus the
// pivot sequences per scale and the indicator readings behind them.
type Analysis struct {
	Symbol      string      `json:"symbol"`
	Version     string      `json:"version"`
	Bars        int         `json:"bars"`
	Score       ScoreBundle `json:"score"`
	Cage        CageInfo    `json:"cage"`
	ATR         float64     `json:"atr"`
	ADX         float64     `json:"adx"`
	MacroPivots []Pivot     `json:"macro_pivots"`
	MesoPivots  []Pivot     `json:"meso_pivots"`
	MicroPivots []Pivot     `json:"micro_pivots"`
}
