package models

import "time"

// ScanRequest describes one batch screening run. An empty Symbols list
// means the configured universe.
type ScanRequest struct {
	ScanID      string   `json:"scan_id"`
	Symbols     []string `json:"symbols"`
	Days        int      `json:"days"`
	Version     string   `json:"version"`
	Concurrency int      `json:"concurrency"`
	RequestedBy string   `json:"requested_by,omitempty"`
}

// ScanResult is the per-symbol outcome of a batch scan. A failed symbol
// carries Err and a zero score; failures never abort the batch.
type ScanResult struct {
	ScanID    string      `json:"scan_id"`
	Symbol    string      `json:"symbol"`
	Version   string      `json:"version"`
	Score     ScoreBundle `json:"score"`
	Cage      CageInfo    `json:"cage"`
	Err       string      `json:"error,omitempty"`
	ElapsedMS int64       `json:"elapsed_ms"`
	CreatedAt time.Time   `json:"created_at"`
}

// ScanSummary aggregates one finished scan, results ranked by structure
// score descending (ties by symbol ascending).
type ScanSummary struct {
	ScanID     string       `json:"scan_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Total      int          `json:"total"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Results    []ScanResult `json:"results"`
}

// ScanEvent is the per-symbol message published to the results topic.
type ScanEvent struct {
	ScanID         string `json:"scan_id"`
	Symbol         string `json:"symbol"`
	StructureScore int    `json:"structure_score"`
	Regime         string `json:"regime"`
	Timestamp      int64  `json:"ts"`
}

// QuoteTick is one live price update from the quote stream.
type QuoteTick struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// CageAlert is emitted when a watched symbol's latest price crosses a
// projected channel boundary by at least the configured ATR multiple.
type CageAlert struct {
	Symbol      string    `json:"symbol"`
	Direction   string    `json:"direction"`
	StrengthATR float64   `json:"strength_atr"`
	Price       float64   `json:"price"`
	Boundary    float64   `json:"boundary"`
	At          time.Time `json:"at"`
}
