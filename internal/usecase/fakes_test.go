package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"WaveScan/internal/domain/models"
	domrepo "WaveScan/internal/domain/repository"
	domsvc "WaveScan/internal/domain/service"
	svccache "WaveScan/internal/service/cache"
	"WaveScan/internal/services/structure"
	pkgcache "WaveScan/pkg/cache"
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

// waveSeries oscillates between lo and lo*(1+swingPct/100) with legs of
// legBars bars each, drifting up by driftPct percent per full cycle.
func waveSeries(n int, lo, swingPct, driftPct float64, legBars int) []models.Candle {
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

type fakeCandleSource struct {
	mu     sync.Mutex
	series map[string][]models.Candle
	fail   map[string]error
	calls  int
}

func newFakeCandleSource() *fakeCandleSource {
	return &fakeCandleSource{
		series: make(map[string][]models.Candle),
		fail:   make(map[string]error),
	}
}

func (s *fakeCandleSource) GetDailyCandles(_ context.Context, symbol string, _ int) ([]models.Candle, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if err, ok := s.fail[symbol]; ok {
		return nil, err
	}
	cs, ok := s.series[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return cs, nil
}

func (s *fakeCandleSource) GetCandles(ctx context.Context, symbol string, _, _ int64, _ domrepo.Timeframe) ([]models.Candle, error) {
	return s.GetDailyCandles(ctx, symbol, 0)
}

func (s *fakeCandleSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeMetrics struct {
	mu      sync.Mutex
	stored  map[string]int
	errors  map[string]int
	scores  map[string]float64
	latency map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		stored:  make(map[string]int),
		errors:  make(map[string]int),
		scores:  make(map[string]float64),
		latency: make(map[string]int),
	}
}

func (m *fakeMetrics) RecordResultStored(backend, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[backend+":"+symbol]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordStructureScore(symbol string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[symbol] = score
}

func (m *fakeMetrics) RecordLatency(op string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency[op]++
}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.ScanEvent
	err    error
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, e *models.ScanEvent) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []*models.ScanEvent) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

type fakeResultStore struct {
	mu      sync.Mutex
	results []*models.ScanResult
	err     error
	closed  bool
}

func (s *fakeResultStore) Init(context.Context) error { return nil }

func (s *fakeResultStore) Store(_ context.Context, r *models.ScanResult) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

func (s *fakeResultStore) StoreBatch(_ context.Context, results []*models.ScanResult) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, results...)
	return nil
}

func (s *fakeResultStore) ScanResults(_ context.Context, scanID string, limit int) ([]*models.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.ScanResult{}
	for _, r := range s.results {
		if r.ScanID == scanID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeResultStore) TopSymbols(_ context.Context, limit, minScore int, _ time.Time) ([]*models.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.ScanResult{}
	for _, r := range s.results {
		if r.Score.StructureScore >= minScore && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeResultStore) Health(context.Context) error { return nil }

func (s *fakeResultStore) Close() error {
	s.closed = true
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	results []models.ScanResult
	err     error
}

func (s *fakeSink) Process(_ context.Context, r *models.ScanResult) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, *r)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type fakeQuoteStream struct {
	mu         sync.Mutex
	connected  bool
	subscribed []string
	ticks      chan *models.QuoteTick
	errs       chan error
	reconnects int
}

func newFakeQuoteStream() *fakeQuoteStream {
	return &fakeQuoteStream{
		ticks: make(chan *models.QuoteTick, 16),
		errs:  make(chan error, 16),
	}
}

func (s *fakeQuoteStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *fakeQuoteStream) Subscribe(_ context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = symbols
	return nil
}

func (s *fakeQuoteStream) Read(context.Context) (<-chan *models.QuoteTick, <-chan error) {
	return s.ticks, s.errs
}

func (s *fakeQuoteStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return nil
}

func (s *fakeQuoteStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *fakeQuoteStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func testEngines(t *testing.T) map[string]domsvc.StructureAnalyzer {
	t.Helper()
	v2, err := structure.NewEngine(structure.DefaultParams())
	if err != nil {
		t.Fatalf("v0.2 engine: %v", err)
	}
	v1, err := structure.NewEngine(structure.DefaultParams().WithVersion(structure.VersionV01))
	if err != nil {
		t.Fatalf("v0.1 engine: %v", err)
	}
	return map[string]domsvc.StructureAnalyzer{
		structure.VersionV02: v2,
		structure.VersionV01: v1,
	}
}

func newTestScreener(t *testing.T, source *fakeCandleSource, universe []string, sink ResultSink, metrics *fakeMetrics) *ScreenerUseCase {
	t.Helper()
	candles := NewCandlesUseCase(source, pkgcache.NewMemoryCache(), time.Minute)
	pre := NewPrefilterUseCase(candles, testEngines(t), structure.VersionV02, svccache.NewTTLCache(), time.Minute)
	return NewScreenerUseCase(pre, sink, metrics, universe, 4, 250)
}
