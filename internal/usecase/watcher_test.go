package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"WaveScan/internal/domain/models"
)

type alertRecorder struct {
	mu     sync.Mutex
	alerts []models.CageAlert
}

func (a *alertRecorder) record(al models.CageAlert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, al)
}

func (a *alertRecorder) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

func intactCage(upper, lower float64) models.CageInfo {
	return models.CageInfo{Exists: true, UpperBoundary: upper, LowerBoundary: lower}
}

func TestTrackSkipsInvalidTargets(t *testing.T) {
	w := NewCageWatcher(newFakeQuoteStream(), newFakeMetrics(), 0.8, nil)

	if w.Track("AAA", models.CageInfo{}, 2) {
		t.Fatalf("no cage should not be tracked")
	}
	if w.Track("AAA", intactCage(110, 100), 0) {
		t.Fatalf("zero ATR should not be tracked")
	}
	if w.Track("", intactCage(110, 100), 2) {
		t.Fatalf("empty symbol should not be tracked")
	}
	if !w.Track("AAA", intactCage(110, 100), 2) {
		t.Fatalf("valid target rejected")
	}
	if got := w.Watched(); len(got) != 1 || got[0] != "AAA" {
		t.Fatalf("Watched() = %v", got)
	}
}

func TestCheckEmitsBreakAlerts(t *testing.T) {
	rec := &alertRecorder{}
	w := NewCageWatcher(newFakeQuoteStream(), newFakeMetrics(), 0.8, rec.record)
	w.Track("AAA", intactCage(110, 100), 2)

	// 113 clears the upper boundary by 1.5 ATR
	w.check(&models.QuoteTick{Symbol: "AAA", Price: 113, Timestamp: time.Now()})
	if rec.count() != 1 {
		t.Fatalf("expected one alert, got %d", rec.count())
	}
	al := rec.alerts[0]
	if al.Direction != models.BreakUp || al.Boundary != 110 {
		t.Fatalf("alert = %+v", al)
	}
	if al.StrengthATR != 1.5 {
		t.Fatalf("strength = %v, want 1.5", al.StrengthATR)
	}

	// same side again within the cooldown: suppressed
	w.check(&models.QuoteTick{Symbol: "AAA", Price: 114, Timestamp: time.Now()})
	if rec.count() != 1 {
		t.Fatalf("cooldown not applied, got %d alerts", rec.count())
	}

	// the other side has its own cooldown slot
	w.check(&models.QuoteTick{Symbol: "AAA", Price: 98, Timestamp: time.Now()})
	if rec.count() != 2 {
		t.Fatalf("down break not alerted, got %d", rec.count())
	}
	if rec.alerts[1].Direction != models.BreakDown {
		t.Fatalf("second alert direction = %q", rec.alerts[1].Direction)
	}
}

func TestCheckIgnoresWeakMoves(t *testing.T) {
	rec := &alertRecorder{}
	w := NewCageWatcher(newFakeQuoteStream(), newFakeMetrics(), 0.8, rec.record)
	w.Track("AAA", intactCage(110, 100), 2)

	// inside the channel
	w.check(&models.QuoteTick{Symbol: "AAA", Price: 105})
	// outside but only 0.5 ATR beyond
	w.check(&models.QuoteTick{Symbol: "AAA", Price: 111})
	// untracked symbol
	w.check(&models.QuoteTick{Symbol: "ZZZ", Price: 500})

	if rec.count() != 0 {
		t.Fatalf("expected no alerts, got %d", rec.count())
	}
}

func TestTrackTopPicksBestWithCages(t *testing.T) {
	w := NewCageWatcher(newFakeQuoteStream(), newFakeMetrics(), 0.8, nil)

	results := []models.ScanResult{
		{Symbol: "TOP1", Cage: intactCage(110, 100)},
		{Symbol: "FAILED", Err: "no data", Cage: intactCage(110, 100)},
		{Symbol: "NOCAGE"},
		{Symbol: "TOP2", Cage: intactCage(55, 50)},
		{Symbol: "TOP3", Cage: intactCage(20, 15)},
	}
	atrOf := func(string) float64 { return 1.5 }

	got := w.TrackTop(results, 2, atrOf)
	if len(got) != 2 || got[0] != "TOP1" || got[1] != "TOP2" {
		t.Fatalf("TrackTop = %v", got)
	}
	if len(w.Watched()) != 2 {
		t.Fatalf("watch set = %v", w.Watched())
	}
}

func TestWatcherStartSubscribesAndConsumes(t *testing.T) {
	stream := newFakeQuoteStream()
	rec := &alertRecorder{}
	w := NewCageWatcher(stream, newFakeMetrics(), 0.8, rec.record)
	w.Track("AAA", intactCage(110, 100), 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !stream.IsConnected() {
		t.Fatalf("stream should be connected")
	}
	if len(stream.subscribed) != 1 || stream.subscribed[0] != "AAA" {
		t.Fatalf("subscribed = %v", stream.subscribed)
	}

	stream.ticks <- &models.QuoteTick{Symbol: "AAA", Price: 113, Timestamp: time.Now()}

	deadline := time.After(2 * time.Second)
	for rec.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("tick never produced an alert")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
