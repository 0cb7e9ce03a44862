package usecase

import (
	"context"
	"errors"
	"testing"

	"WaveScan/internal/domain/models"
)

func TestScanRanksResults(t *testing.T) {
	source := newFakeCandleSource()
	source.series["WAVY"] = waveSeries(200, 100, 8, 2, 10)
	source.series["FLAT"] = make([]models.Candle, 0)
	for i := 0; i < 200; i++ {
		source.series["FLAT"] = append(source.series["FLAT"], bar(i, 50))
	}
	source.fail["BAD"] = errors.New("upstream down")

	metrics := newFakeMetrics()
	uc := newTestScreener(t, source, []string{"FLAT", "WAVY", "BAD"}, nil, metrics)

	summary, err := uc.Scan(context.Background(), models.ScanRequest{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.ScanID == "" {
		t.Fatalf("expected generated scan id")
	}
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("got total=%d ok=%d failed=%d", summary.Total, summary.Succeeded, summary.Failed)
	}

	// WAVY outranks the zero scores; the zero scores tie-break by symbol.
	wantOrder := []string{"WAVY", "BAD", "FLAT"}
	for i, want := range wantOrder {
		if summary.Results[i].Symbol != want {
			t.Fatalf("rank %d = %s, want %s", i, summary.Results[i].Symbol, want)
		}
	}
	for _, r := range summary.Results {
		if r.ScanID != summary.ScanID {
			t.Fatalf("result %s carries scan id %q", r.Symbol, r.ScanID)
		}
	}

	var bad *models.ScanResult
	for i := range summary.Results {
		if summary.Results[i].Symbol == "BAD" {
			bad = &summary.Results[i]
		}
	}
	if bad == nil {
		t.Fatalf("failed symbol missing from results")
	}
	if bad.Err == "" || bad.Score.StructureScore != 0 {
		t.Fatalf("failed symbol should carry error and zero score, got %+v", bad)
	}
}

func TestScanUsesUniverseWhenEmpty(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)
	source.series["BBB"] = waveSeries(200, 100, 8, 2, 10)

	uc := newTestScreener(t, source, []string{"AAA", "BBB"}, nil, newFakeMetrics())
	summary, err := uc.Scan(context.Background(), models.ScanRequest{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.Total != 2 {
		t.Fatalf("expected universe of 2, got %d", summary.Total)
	}
	// equal scores fall back to symbol order
	if summary.Results[0].Symbol != "AAA" || summary.Results[1].Symbol != "BBB" {
		t.Fatalf("tie not broken by symbol: %s, %s", summary.Results[0].Symbol, summary.Results[1].Symbol)
	}
}

func TestScanExplicitSymbolsOverrideUniverse(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)
	source.series["CCC"] = waveSeries(200, 100, 8, 2, 10)

	uc := newTestScreener(t, source, []string{"AAA"}, nil, newFakeMetrics())
	summary, err := uc.Scan(context.Background(), models.ScanRequest{Symbols: []string{"CCC"}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.Total != 1 || summary.Results[0].Symbol != "CCC" {
		t.Fatalf("expected only CCC, got %+v", summary.Results)
	}
}

func TestScanForwardsToSink(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)
	source.fail["BAD"] = errors.New("nope")

	sink := &fakeSink{}
	uc := newTestScreener(t, source, []string{"AAA", "BAD"}, sink, newFakeMetrics())
	if _, err := uc.Scan(context.Background(), models.ScanRequest{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if sink.count() != 2 {
		t.Fatalf("sink saw %d results, want 2", sink.count())
	}
}

func TestScanSinkErrorsDoNotFailScan(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)

	sink := &fakeSink{err: errors.New("backend down")}
	metrics := newFakeMetrics()
	uc := newTestScreener(t, source, []string{"AAA"}, sink, metrics)
	summary, err := uc.Scan(context.Background(), models.ScanRequest{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("scan should succeed despite sink failure")
	}
	if metrics.errorCount("scan_forward") != 1 {
		t.Fatalf("expected scan_forward error recorded")
	}
}

func TestSummaryAndTop(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)
	source.series["FLAT"] = nil
	for i := 0; i < 200; i++ {
		source.series["FLAT"] = append(source.series["FLAT"], bar(i, 50))
	}

	uc := newTestScreener(t, source, []string{"AAA", "FLAT"}, nil, newFakeMetrics())
	summary, err := uc.Scan(context.Background(), models.ScanRequest{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	got, ok := uc.Summary(summary.ScanID)
	if !ok || got.ScanID != summary.ScanID {
		t.Fatalf("summary not remembered")
	}
	if _, ok := uc.Summary("no-such-scan"); ok {
		t.Fatalf("unknown scan id should not resolve")
	}

	top := uc.Top(summary.ScanID, 1, 0)
	if len(top) != 1 || top[0].Symbol != "AAA" {
		t.Fatalf("Top(1) = %+v", top)
	}
	if got := uc.Top(summary.ScanID, 10, 101); len(got) != 0 {
		t.Fatalf("minScore above range should filter all, got %+v", got)
	}

	last, ok := uc.LastSummary()
	if !ok || last.ScanID != summary.ScanID {
		t.Fatalf("LastSummary mismatch")
	}
}

func TestScanRespectsRequestedVersion(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)

	uc := newTestScreener(t, source, []string{"AAA"}, nil, newFakeMetrics())
	summary, err := uc.Scan(context.Background(), models.ScanRequest{Version: "v0.1"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if summary.Results[0].Version != "v0.1" {
		t.Fatalf("result version = %q, want v0.1", summary.Results[0].Version)
	}
	if summary.Results[0].Score.Wave3Bonus != 0 {
		t.Fatalf("v0.1 must not grant the wave bonus")
	}
}
