package service

import (
	"WaveScan/internal/domain/models"
)

// StructureAnalyzer scores candle series for wave structure. Implementations
// are pure CPU and safe for concurrent use.
type StructureAnalyzer interface {
	Score(candles []models.Candle) (models.ScoreBundle, error)
	Analyze(symbol string, candles []models.Candle) (*models.Analysis, error)
	ExtractScale(candles []models.Candle, scale models.Scale) ([]models.Pivot, error)
}
