package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"WaveScan/internal/domain/models"
	drepo "WaveScan/internal/domain/repository"
)

const alertCooldown = 5 * time.Minute

type watchTarget struct {
	upper float64
	lower float64
	atr   float64
}

// CageWatcher follows live quotes for the best-ranked symbols and raises an
// alert when a price crosses its projected channel boundary by at least the
// configured ATR multiple. Boundaries come from the latest scan and are only
// replaced on the next one.
type CageWatcher struct {
	stream      drepo.QuoteStream
	metrics     drepo.Metrics
	alertFn     func(models.CageAlert)
	minStrength float64

	mu        sync.RWMutex
	targets   map[string]watchTarget
	lastAlert map[string]time.Time
}

// NewCageWatcher creates a new CageWatcher instance.
func NewCageWatcher(stream drepo.QuoteStream, metrics drepo.Metrics, minStrength float64, alertFn func(models.CageAlert)) *CageWatcher {
	if minStrength <= 0 {
		minStrength = 0.8
	}
	return &CageWatcher{
		stream:      stream,
		metrics:     metrics,
		alertFn:     alertFn,
		minStrength: minStrength,
		targets:     make(map[string]watchTarget),
		lastAlert:   make(map[string]time.Time),
	}
}

// Track registers one symbol's channel boundaries. Symbols without a built
// cage or with a zero ATR are skipped.
func (w *CageWatcher) Track(symbol string, cage models.CageInfo, atr float64) bool {
	if symbol == "" || !cage.Exists || atr <= 0 {
		return false
	}
	w.mu.Lock()
	w.targets[symbol] = watchTarget{upper: cage.UpperBoundary, lower: cage.LowerBoundary, atr: atr}
	w.mu.Unlock()
	return true
}

// TrackTop replaces the watch set with the best topN results that carry a
// cage. Results are expected ranked best-first. Returns the tracked symbols.
func (w *CageWatcher) TrackTop(results []models.ScanResult, topN int, atrOf func(symbol string) float64) []string {
	if topN <= 0 {
		topN = 10
	}
	w.mu.Lock()
	w.targets = make(map[string]watchTarget)
	w.mu.Unlock()

	symbols := make([]string, 0, topN)
	for _, r := range results {
		if len(symbols) == topN {
			break
		}
		if r.Err != "" || !r.Cage.Exists {
			continue
		}
		atr := 0.0
		if atrOf != nil {
			atr = atrOf(r.Symbol)
		}
		if w.Track(r.Symbol, r.Cage, atr) {
			symbols = append(symbols, r.Symbol)
		}
	}
	return symbols
}

// Watched returns the currently tracked symbols.
func (w *CageWatcher) Watched() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.targets))
	for s := range w.targets {
		out = append(out, s)
	}
	return out
}

// IsConnected returns true if the quote stream is connected.
func (w *CageWatcher) IsConnected() bool {
	return w.stream.IsConnected()
}

// Start connects the stream, subscribes to the tracked symbols and begins
// consuming ticks.
func (w *CageWatcher) Start(ctx context.Context) error {
	if err := w.stream.Connect(ctx); err != nil {
		return err
	}
	if err := w.stream.Subscribe(ctx, w.Watched()); err != nil {
		return err
	}
	tickCh, errCh := w.stream.Read(ctx)
	go w.consume(ctx, tickCh, errCh)
	return nil
}

// Resubscribe updates the stream subscription to the current watch set.
func (w *CageWatcher) Resubscribe(ctx context.Context) error {
	return w.stream.Subscribe(ctx, w.Watched())
}

func (w *CageWatcher) consume(ctx context.Context, tickCh <-chan *models.QuoteTick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				w.metrics.RecordError("stream")
				if rerr := w.stream.Reconnect(ctx); rerr != nil {
					log.Printf("cage watcher: reconnect failed: %v", rerr)
				}
			}
		case t := <-tickCh:
			if t == nil {
				continue
			}
			w.check(t)
		}
	}
}

func (w *CageWatcher) check(t *models.QuoteTick) {
	w.mu.RLock()
	tgt, ok := w.targets[t.Symbol]
	w.mu.RUnlock()
	if !ok {
		return
	}

	var direction string
	var boundary, dist float64
	switch {
	case t.Price > tgt.upper:
		direction = models.BreakUp
		boundary = tgt.upper
		dist = t.Price - tgt.upper
	case t.Price < tgt.lower:
		direction = models.BreakDown
		boundary = tgt.lower
		dist = tgt.lower - t.Price
	default:
		return
	}

	strength := dist / tgt.atr
	if strength < w.minStrength {
		return
	}

	now := time.Now()
	key := t.Symbol + ":" + direction
	w.mu.Lock()
	if last, seen := w.lastAlert[key]; seen && now.Sub(last) < alertCooldown {
		w.mu.Unlock()
		return
	}
	w.lastAlert[key] = now
	w.mu.Unlock()

	alert := models.CageAlert{
		Symbol:      t.Symbol,
		Direction:   direction,
		StrengthATR: strength,
		Price:       t.Price,
		Boundary:    boundary,
		At:          t.Timestamp,
	}
	if alert.At.IsZero() {
		alert.At = now.UTC()
	}
	log.Printf("cage watcher: %s broke %s at %.2f (%.2f ATR)", t.Symbol, direction, t.Price, strength)
	if w.alertFn != nil {
		w.alertFn(alert)
	}
}

// Stop closes the quote stream.
func (w *CageWatcher) Stop() error { return w.stream.Close() }
