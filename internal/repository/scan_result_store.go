package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"WaveScan/internal/domain/models"
	domrepo "WaveScan/internal/domain/repository"
	pkgch "WaveScan/pkg/clickhouse"
	applogger "WaveScan/pkg/logger"
)

const resultsTable = "structure_scan_results"

// One row per scanned symbol. Ordered for the two read paths: all rows of
// one scan, and the latest row per symbol.
const resultsDDL = `
CREATE TABLE IF NOT EXISTS ` + resultsTable + ` (
    scan_id         String,
    symbol          String,
    version         String,
    score           Int32,
    raw_score       Float64,
    alternation     Float64,
    proportionality Float64,
    pivot_quality   Float64,
    cage_presence   Float64,
    wave3_bonus     Float64,
    regime          String,
    notes           String,
    cage_exists     UInt8,
    cage_broken     UInt8,
    break_direction String,
    break_strength  Float64,
    upper_boundary  Float64,
    lower_boundary  Float64,
    error           String,
    elapsed_ms      Int64,
    created_at      DateTime
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(created_at)
ORDER BY (scan_id, symbol, created_at)
TTL created_at + INTERVAL 90 DAY
`

const resultColumns = `scan_id, symbol, version, score, raw_score, alternation, proportionality, pivot_quality, cage_presence, wave3_bonus, regime, notes, cage_exists, cage_broken, break_direction, break_strength, upper_boundary, lower_boundary, error, elapsed_ms, created_at`

// ClickHouseResultStore implements ResultStore backed by ClickHouse.
type ClickHouseResultStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewClickHouseResultStore(ch *pkgch.Client) *ClickHouseResultStore {
	return &ClickHouseResultStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *ClickHouseResultStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates the results table if missing.
func (s *ClickHouseResultStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, resultsDDL); err != nil {
		return fmt.Errorf("init results table: %w", err)
	}
	return nil
}

func resultArgs(r *models.ScanResult) []interface{} {
	return []interface{}{
		r.ScanID,
		r.Symbol,
		r.Version,
		int32(r.Score.StructureScore),
		r.Score.RawStructureScore,
		r.Score.AlternationScore,
		r.Score.ProportionalityScore,
		r.Score.PivotQualityScore,
		r.Score.CagePresenceScore,
		r.Score.Wave3Bonus,
		string(r.Score.RegimeHint),
		strings.Join(r.Score.Notes, "\n"),
		boolToUInt8(r.Cage.Exists),
		boolToUInt8(r.Cage.Broken),
		r.Cage.BreakDirection,
		r.Cage.BreakStrengthATR,
		r.Cage.UpperBoundary,
		r.Cage.LowerBoundary,
		r.Err,
		r.ElapsedMS,
		r.CreatedAt,
	}
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (s *ClickHouseResultStore) Store(ctx context.Context, r *models.ScanResult) error {
	if r == nil || r.Symbol == "" {
		return fmt.Errorf("invalid result")
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", resultsTable, resultColumns)
	if _, err := s.db.ExecContext(ctx, q, resultArgs(r)...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store result error",
				applogger.String("symbol", r.Symbol),
				applogger.String("scan_id", r.ScanID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (s *ClickHouseResultStore) StoreBatch(ctx context.Context, results []*models.ScanResult) error {
	if len(results) == 0 {
		return nil
	}
	// Multi-row VALUES to reduce round-trips, chunked to keep statements bounded.
	const chunkSize = 500
	for start := 0; start < len(results); start += chunkSize {
		end := start + chunkSize
		if end > len(results) {
			end = len(results)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*21)
		for _, r := range results[start:end] {
			if r == nil || r.Symbol == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, resultArgs(r)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", resultsTable, resultColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse store batch error",
					applogger.Int("rows", len(values)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store batch: %w", err)
		}
	}
	return nil
}

// ScanResults returns the rows of one scan, best score first.
func (s *ClickHouseResultStore) ScanResults(ctx context.Context, scanID string, limit int) ([]*models.ScanResult, error) {
	if limit <= 0 {
		limit = 100
	}
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT %s
        FROM %s
        WHERE scan_id = ?
        ORDER BY score DESC, symbol ASC
        LIMIT ?
    `, resultColumns, resultsTable)
	rows, err := s.db.QueryContext(ctx, q, scanID, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse scan_results query error",
				applogger.String("scan_id", scanID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("scan results: %w", err)
	}
	defer rows.Close()

	out, err := collectResults(rows)
	if err != nil {
		return nil, err
	}
	if s.l != nil {
		s.l.Info("clickhouse scan_results ok",
			applogger.String("scan_id", scanID),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// TopSymbols returns the latest successful row per symbol since the cutoff,
// filtered by minimum score and ranked best first.
func (s *ClickHouseResultStore) TopSymbols(ctx context.Context, limit int, minScore int, since time.Time) ([]*models.ScanResult, error) {
	if limit <= 0 {
		limit = 20
	}
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT %s FROM (
            SELECT %s
            FROM %s
            WHERE created_at >= ? AND error = '' AND score >= ?
            ORDER BY symbol ASC, created_at DESC
            LIMIT 1 BY symbol
        )
        ORDER BY score DESC, symbol ASC
        LIMIT ?
    `, resultColumns, resultColumns, resultsTable)
	rows, err := s.db.QueryContext(ctx, q, since, minScore, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse top_symbols query error",
				applogger.Int("min_score", minScore),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("top symbols: %w", err)
	}
	defer rows.Close()

	out, err := collectResults(rows)
	if err != nil {
		return nil, err
	}
	if s.l != nil {
		s.l.Info("clickhouse top_symbols ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func collectResults(rows *sql.Rows) ([]*models.ScanResult, error) {
	out := make([]*models.ScanResult, 0, 64)
	for rows.Next() {
		var (
			r          models.ScanResult
			score      int32
			regime     string
			notes      string
			cageExists uint8
			cageBroken uint8
		)
		if err := rows.Scan(
			&r.ScanID,
			&r.Symbol,
			&r.Version,
			&score,
			&r.Score.RawStructureScore,
			&r.Score.AlternationScore,
			&r.Score.ProportionalityScore,
			&r.Score.PivotQualityScore,
			&r.Score.CagePresenceScore,
			&r.Score.Wave3Bonus,
			&regime,
			&notes,
			&cageExists,
			&cageBroken,
			&r.Cage.BreakDirection,
			&r.Cage.BreakStrengthATR,
			&r.Cage.UpperBoundary,
			&r.Cage.LowerBoundary,
			&r.Err,
			&r.ElapsedMS,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Score.StructureScore = int(score)
		r.Score.RegimeHint = models.RegimeHint(regime)
		if notes != "" {
			r.Score.Notes = strings.Split(notes, "\n")
		}
		r.Cage.Exists = cageExists != 0
		r.Cage.Broken = cageBroken != 0
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseResultStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseResultStore) Close() error {
	return nil // connection pool is owned by pkg/clickhouse
}

var _ domrepo.ResultStore = (*ClickHouseResultStore)(nil)
