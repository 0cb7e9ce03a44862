package usecase

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"WaveScan/internal/domain/models"
	drepo "WaveScan/internal/domain/repository"
)

// ResultSink receives scan results one at a time. Both the processor and the
// buffering pipeline in front of it satisfy this.
type ResultSink interface {
	Process(ctx context.Context, r *models.ScanResult) error
}

// ProgressFunc is called with progress updates as symbols finish.
type ProgressFunc func(done, total int)

const recentSummaries = 32

// ScreenerUseCase runs the structure engine over a symbol universe. Per-symbol
// failures are recorded on the result and never abort the batch.
type ScreenerUseCase struct {
	prefilter   *PrefilterUseCase
	sink        ResultSink
	metrics     drepo.Metrics
	universe    []string
	concurrency int
	defaultDays int
	progress    ProgressFunc

	mu     sync.RWMutex
	recent map[string]*models.ScanSummary
	order  []string
}

func NewScreenerUseCase(
	prefilter *PrefilterUseCase,
	sink ResultSink,
	metrics drepo.Metrics,
	universe []string,
	concurrency int,
	defaultDays int,
) *ScreenerUseCase {
	if concurrency <= 0 {
		concurrency = 8
	}
	if defaultDays <= 0 {
		defaultDays = 250
	}
	return &ScreenerUseCase{
		prefilter:   prefilter,
		sink:        sink,
		metrics:     metrics,
		universe:    universe,
		concurrency: concurrency,
		defaultDays: defaultDays,
		recent:      make(map[string]*models.ScanSummary),
	}
}

// SetProgress registers a progress callback. Set it before calling Scan.
func (uc *ScreenerUseCase) SetProgress(fn ProgressFunc) {
	uc.progress = fn
}

// Universe returns the configured symbol list.
func (uc *ScreenerUseCase) Universe() []string {
	out := make([]string, len(uc.universe))
	copy(out, uc.universe)
	return out
}

// Scan scores every requested symbol concurrently and returns the ranked
// summary. An empty symbol list means the configured universe.
func (uc *ScreenerUseCase) Scan(ctx context.Context, req models.ScanRequest) (*models.ScanSummary, error) {
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = uc.universe
	}
	if req.ScanID == "" {
		req.ScanID = uuid.NewString()
	}
	if req.Days <= 0 {
		req.Days = uc.defaultDays
	}
	conc := req.Concurrency
	if conc <= 0 {
		conc = uc.concurrency
	}
	if conc > len(symbols) && len(symbols) > 0 {
		conc = len(symbols)
	}

	started := time.Now().UTC()
	resCh := make(chan models.ScanResult, len(symbols))

	var done int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conc)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			resCh <- uc.scanOne(gctx, req, sym)
			if uc.progress != nil {
				uc.progress(int(atomic.AddInt64(&done, 1)), len(symbols))
			}
			return nil
		})
	}
	err := g.Wait()
	close(resCh)

	results := make([]models.ScanResult, 0, len(symbols))
	for r := range resCh {
		results = append(results, r)
	}
	if err != nil {
		// Canceled mid-scan; rank whatever finished.
		uc.metrics.RecordError("scan_canceled")
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score.StructureScore != results[j].Score.StructureScore {
			return results[i].Score.StructureScore > results[j].Score.StructureScore
		}
		return results[i].Symbol < results[j].Symbol
	})

	summary := &models.ScanSummary{
		ScanID:     req.ScanID,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Total:      len(results),
		Results:    results,
	}
	for i := range results {
		if results[i].Err == "" {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	uc.remember(summary)
	uc.forward(ctx, results)
	uc.metrics.RecordLatency("scan", summary.FinishedAt.Sub(started).Seconds())

	return summary, err
}

func (uc *ScreenerUseCase) scanOne(ctx context.Context, req models.ScanRequest, symbol string) models.ScanResult {
	start := time.Now()
	res := models.ScanResult{
		ScanID:    req.ScanID,
		Symbol:    symbol,
		Version:   req.Version,
		CreatedAt: start.UTC(),
	}

	out, err := uc.prefilter.Prefilter(ctx, PrefilterParams{
		Symbol:  symbol,
		Days:    req.Days,
		Version: req.Version,
	})
	res.ElapsedMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Err = err.Error()
		uc.metrics.RecordError("scan_symbol")
		return res
	}

	res.Version = out.Version
	res.Score = out.Score
	res.Cage = out.Cage
	return res
}

func (uc *ScreenerUseCase) forward(ctx context.Context, results []models.ScanResult) {
	if uc.sink == nil {
		return
	}
	for i := range results {
		if err := uc.sink.Process(ctx, &results[i]); err != nil {
			uc.metrics.RecordError("scan_forward")
		}
	}
}

func (uc *ScreenerUseCase) remember(s *models.ScanSummary) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.recent[s.ScanID] = s
	uc.order = append(uc.order, s.ScanID)
	for len(uc.order) > recentSummaries {
		delete(uc.recent, uc.order[0])
		uc.order = uc.order[1:]
	}
}

// Summary returns a recently finished scan by id, if still held in memory.
func (uc *ScreenerUseCase) Summary(scanID string) (*models.ScanSummary, bool) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	s, ok := uc.recent[scanID]
	return s, ok
}

// Top returns the best-scoring successful results of a remembered scan.
func (uc *ScreenerUseCase) Top(scanID string, limit, minScore int) []models.ScanResult {
	s, ok := uc.Summary(scanID)
	if !ok {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}
	out := make([]models.ScanResult, 0, limit)
	for _, r := range s.Results {
		if r.Err != "" || r.Score.StructureScore < minScore {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

// LastSummary returns the most recently finished scan, if any.
func (uc *ScreenerUseCase) LastSummary() (*models.ScanSummary, bool) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if len(uc.order) == 0 {
		return nil, false
	}
	s := uc.recent[uc.order[len(uc.order)-1]]
	return s, s != nil
}
