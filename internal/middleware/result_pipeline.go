package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"WaveScan/internal/domain/models"
	domrepo "WaveScan/internal/domain/repository"
)

// Proc is the minimal downstream interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, r *models.ScanResult) error
}

// BatchProc is implemented by downstreams that can flush many results in
// one call.
type BatchProc interface {
	Proc
	ProcessBatch(ctx context.Context, results []*models.ScanResult) error
}

// ResultPipeline sits between the screener and the result backend.
// It validates, throttles per symbol, and buffers when downstream is
// unavailable so a flaky ClickHouse or Kafka does not lose scan output.
type ResultPipeline struct {
	proc      Proc
	bp        BatchProc // non-nil when proc supports batch flushes
	metrics   domrepo.Metrics
	maxRPS    int
	bufSize   int
	batchSize int
	linger    time.Duration
	bufCh     chan *models.ScanResult
	stopCh    chan struct{}
	started   bool
	mu        sync.Mutex
	lastSeen  map[string]time.Time // per-symbol last accepted time
	// optional transform hook
	transform func(*models.ScanResult) *models.ScanResult
	// metrics
	bufDepthGauge func(int)
	throttleWarn  func(string)
}

type PipelineOption func(*ResultPipeline)

// WithMaxRPS sets the max accepted results per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *ResultPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *ResultPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a transformation hook applied before forwarding.
func WithTransform(fn func(*models.ScanResult) *models.ScanResult) PipelineOption {
	return func(p *ResultPipeline) { p.transform = fn }
}

// WithBatching makes buffered flushes drain up to size results per call,
// waiting at most linger for stragglers. Only effective when the downstream
// supports batches.
func WithBatching(size int, linger time.Duration) PipelineOption {
	return func(p *ResultPipeline) {
		if size > 1 {
			p.batchSize = size
		}
		if linger > 0 {
			p.linger = linger
		}
	}
}

// NewResultPipeline creates a new pipeline.
func NewResultPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *ResultPipeline {
	p := &ResultPipeline{
		proc:      proc,
		metrics:   metrics,
		maxRPS:    50,   // default throttle per symbol
		bufSize:   1000, // default buffer
		batchSize: 1,
		bufCh:     make(chan *models.ScanResult, 1000),
		stopCh:    make(chan struct{}),
		lastSeen:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.ScanResult, p.bufSize)
	}
	if p.batchSize > 1 {
		p.bp, _ = proc.(BatchProc)
		if p.bp == nil {
			p.batchSize = 1
		}
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	p.throttleWarn = func(sym string) { p.metrics.RecordError("pipeline_throttle_" + sym) }
	return p
}

// Start launches background flushing of buffered results.
func (p *ResultPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case r := <-p.bufCh:
				if r == nil {
					continue
				}
				batch := p.collect(r)
				if err := p.flush(ctx, batch); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					p.requeue(batch)
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// collect tops up a flush batch from the buffer, waiting at most the linger
// window for stragglers.
func (p *ResultPipeline) collect(first *models.ScanResult) []*models.ScanResult {
	batch := []*models.ScanResult{first}
	if p.batchSize <= 1 {
		return batch
	}
	if p.linger <= 0 {
		for len(batch) < p.batchSize {
			select {
			case r := <-p.bufCh:
				if r != nil {
					batch = append(batch, r)
				}
			default:
				return batch
			}
		}
		return batch
	}
	t := time.NewTimer(p.linger)
	defer t.Stop()
	for len(batch) < p.batchSize {
		select {
		case r := <-p.bufCh:
			if r != nil {
				batch = append(batch, r)
			}
		case <-t.C:
			return batch
		}
	}
	return batch
}

func (p *ResultPipeline) flush(ctx context.Context, batch []*models.ScanResult) error {
	if len(batch) > 1 {
		return p.bp.ProcessBatch(ctx, batch)
	}
	return p.proc.Process(ctx, batch[0])
}

// requeue puts a failed batch back if space allows; overflow is dropped.
func (p *ResultPipeline) requeue(batch []*models.ScanResult) {
	for _, r := range batch {
		select {
		case p.bufCh <- r:
		default:
			p.metrics.RecordError("pipeline_buffer_drop")
		}
	}
}

// Stop stops the background flushing.
func (p *ResultPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards one result, buffering on errors.
func (p *ResultPipeline) Process(ctx context.Context, r *models.ScanResult) error {
	start := time.Now()
	if err := validateResult(r); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		r = p.transform(r)
		if err := validateResult(r); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(r.Symbol, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		if p.throttleWarn != nil {
			p.throttleWarn(r.Symbol)
		}
		return nil
	}

	if err := p.proc.Process(ctx, r); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- r:
			if p.bufDepthGauge != nil {
				p.bufDepthGauge(len(p.bufCh))
			}
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateResult(r *models.ScanResult) error {
	if r == nil {
		return fmt.Errorf("result nil")
	}
	if r.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if r.ScanID == "" {
		return fmt.Errorf("scan id empty")
	}
	if r.Score.StructureScore < 0 || r.Score.StructureScore > 100 {
		return fmt.Errorf("score out of range: %d", r.Score.StructureScore)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("created_at unset")
	}
	return nil
}

func (p *ResultPipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if last.IsZero() {
		p.lastSeen[symbol] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
