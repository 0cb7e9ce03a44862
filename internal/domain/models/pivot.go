package models

import "time"

// PivotType distinguishes swing highs from swing lows.
type PivotType string

const (
	PivotHigh PivotType = "high"
	PivotLow  PivotType = "low"
)

// Scale names the threshold tuple that produced a pivot.
type Scale string

const (
	ScaleMacro Scale = "macro"
	ScaleMeso  Scale = "meso"
	ScaleMicro Scale = "micro"
)

// Pivot is a confirmed local extremum of a candle series. Pivots are
// produced fresh on every extraction and never persisted as entities.
type Pivot struct {
	Index      int       `json:"index"`
	Type       PivotType `json:"type"`
	Price      float64   `json:"price"`
	Date       time.Time `json:"date"`
	Prominence float64   `json:"prominence"`
	Scale      Scale     `json:"scale"`
}
