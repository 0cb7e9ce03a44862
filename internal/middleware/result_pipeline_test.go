package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"WaveScan/internal/domain/models"
)

type stubProc struct {
	mu    sync.Mutex
	got   []*models.ScanResult
	fails int
}

func (p *stubProc) Process(_ context.Context, r *models.ScanResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return errors.New("downstream unavailable")
	}
	p.got = append(p.got, r)
	return nil
}

func (p *stubProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

type stubBatchProc struct {
	stubProc
	batches int
}

func (p *stubBatchProc) ProcessBatch(_ context.Context, rs []*models.ScanResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return errors.New("downstream unavailable")
	}
	p.batches++
	p.got = append(p.got, rs...)
	return nil
}

type stubMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{errors: make(map[string]int)}
}

func (m *stubMetrics) RecordResultStored(string, string) {}
func (m *stubMetrics) RecordStructureScore(string, float64) {}
func (m *stubMetrics) RecordLatency(string, float64) {}

func (m *stubMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *stubMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func validScanResult(symbol string) *models.ScanResult {
	return &models.ScanResult{
		ScanID:    "scan-1",
		Symbol:    symbol,
		Score:     models.ScoreBundle{StructureScore: 70},
		CreatedAt: time.Now().UTC(),
	}
}

func TestPipelineRejectsInvalidResults(t *testing.T) {
	metrics := newStubMetrics()
	p := NewResultPipeline(&stubProc{}, metrics)

	cases := []*models.ScanResult{
		nil,
		{ScanID: "s", CreatedAt: time.Now()},                                   // no symbol
		{Symbol: "AAA", CreatedAt: time.Now()},                                 // no scan id
		{ScanID: "s", Symbol: "AAA"},                                           // no created_at
		{ScanID: "s", Symbol: "AAA", CreatedAt: time.Now(), Score: models.ScoreBundle{StructureScore: 101}},
	}
	for i, r := range cases {
		if err := p.Process(context.Background(), r); err == nil {
			t.Fatalf("case %d should be rejected", i)
		}
	}
	if metrics.count("pipeline_validate") != len(cases) {
		t.Fatalf("validate errors = %d, want %d", metrics.count("pipeline_validate"), len(cases))
	}
}

func TestPipelineForwards(t *testing.T) {
	proc := &stubProc{}
	p := NewResultPipeline(proc, newStubMetrics())

	if err := p.Process(context.Background(), validScanResult("AAA")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("downstream got %d, want 1", proc.count())
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &stubProc{}
	metrics := newStubMetrics()
	p := NewResultPipeline(proc, metrics, WithMaxRPS(1))

	if err := p.Process(context.Background(), validScanResult("AAA")); err != nil {
		t.Fatalf("first: %v", err)
	}
	// immediate repeat for the same symbol is dropped without error
	if err := p.Process(context.Background(), validScanResult("AAA")); err != nil {
		t.Fatalf("throttled call should not error: %v", err)
	}
	// other symbols are unaffected
	if err := p.Process(context.Background(), validScanResult("BBB")); err != nil {
		t.Fatalf("other symbol: %v", err)
	}

	if proc.count() != 2 {
		t.Fatalf("downstream got %d, want 2", proc.count())
	}
	if metrics.count("pipeline_throttle") != 1 {
		t.Fatalf("throttle not recorded")
	}
}

func TestPipelineBuffersAndFlushes(t *testing.T) {
	proc := &stubProc{fails: 1}
	metrics := newStubMetrics()
	p := NewResultPipeline(proc, metrics, WithBufferSize(8))

	// downstream fails once: the result is buffered and the error surfaces
	if err := p.Process(context.Background(), validScanResult("AAA")); err == nil {
		t.Fatalf("expected downstream error")
	}
	if metrics.count("pipeline_process") != 1 {
		t.Fatalf("process error not recorded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for proc.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("buffered result never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPipelineBatchFlush(t *testing.T) {
	proc := &stubBatchProc{stubProc: stubProc{fails: 3}}
	metrics := newStubMetrics()
	p := NewResultPipeline(proc, metrics, WithBufferSize(8), WithBatching(4, 100*time.Millisecond))

	// three buffered failures before the flusher starts
	for _, sym := range []string{"AAA", "BBB", "CCC"} {
		if err := p.Process(context.Background(), validScanResult(sym)); err == nil {
			t.Fatalf("expected downstream error for %s", sym)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for proc.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("buffered results never flushed, got %d", proc.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
	proc.mu.Lock()
	batches := proc.batches
	proc.mu.Unlock()
	if batches != 1 {
		t.Fatalf("flushed in %d batches, want 1", batches)
	}
}

func TestPipelineTransform(t *testing.T) {
	proc := &stubProc{}
	p := NewResultPipeline(proc, newStubMetrics(), WithTransform(func(r *models.ScanResult) *models.ScanResult {
		r.Version = "v0.2"
		return r
	}))

	if err := p.Process(context.Background(), validScanResult("AAA")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if proc.got[0].Version != "v0.2" {
		t.Fatalf("transform not applied")
	}
}
