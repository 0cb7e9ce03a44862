package usecase

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	svccache "WaveScan/internal/service/cache"
	"WaveScan/internal/services/structure"
	pkgcache "WaveScan/pkg/cache"
)

func TestPrefilterMemoizes(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)

	candles := NewCandlesUseCase(source, nil, time.Minute)
	uc := NewPrefilterUseCase(candles, testEngines(t), structure.VersionV02, svccache.NewTTLCache(), time.Minute)

	first, err := uc.Prefilter(context.Background(), PrefilterParams{Symbol: "AAA"})
	if err != nil {
		t.Fatalf("Prefilter: %v", err)
	}
	if first.Cached {
		t.Fatalf("first call must not be cached")
	}
	if first.Version != "v0.2" || first.Days != 250 || first.Bars != 200 {
		t.Fatalf("unexpected result header: %+v", first)
	}
	if first.Score.StructureScore == 0 {
		t.Fatalf("wave series should score above zero")
	}

	second, err := uc.Prefilter(context.Background(), PrefilterParams{Symbol: "AAA"})
	if err != nil {
		t.Fatalf("Prefilter (cached): %v", err)
	}
	if !second.Cached {
		t.Fatalf("second call should come from cache")
	}
	if !reflect.DeepEqual(second.Score, first.Score) {
		t.Fatalf("cached score differs")
	}
	if source.callCount() != 1 {
		t.Fatalf("source called %d times, want 1", source.callCount())
	}
}

func TestPrefilterVersionsAreCachedSeparately(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)

	candles := NewCandlesUseCase(source, nil, time.Minute)
	uc := NewPrefilterUseCase(candles, testEngines(t), structure.VersionV02, svccache.NewTTLCache(), time.Minute)

	v2, err := uc.Prefilter(context.Background(), PrefilterParams{Symbol: "AAA", Version: "v0.2"})
	if err != nil {
		t.Fatalf("v0.2: %v", err)
	}
	v1, err := uc.Prefilter(context.Background(), PrefilterParams{Symbol: "AAA", Version: "v0.1"})
	if err != nil {
		t.Fatalf("v0.1: %v", err)
	}
	if v1.Cached {
		t.Fatalf("different version should miss the memo")
	}
	if v1.Version != "v0.1" || v2.Version != "v0.2" {
		t.Fatalf("versions not carried: %q, %q", v1.Version, v2.Version)
	}
	if v2.Score.Wave3Bonus == 0 || v1.Score.Wave3Bonus != 0 {
		t.Fatalf("wave bonus should differ across versions")
	}
}

func TestPrefilterUnknownVersion(t *testing.T) {
	source := newFakeCandleSource()
	candles := NewCandlesUseCase(source, nil, time.Minute)
	uc := NewPrefilterUseCase(candles, testEngines(t), structure.VersionV02, nil, time.Minute)

	_, err := uc.Prefilter(context.Background(), PrefilterParams{Symbol: "AAA", Version: "v9"})
	if err == nil || !strings.Contains(err.Error(), "unknown scoring version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestPrefilterRequiresSymbol(t *testing.T) {
	uc := NewPrefilterUseCase(nil, testEngines(t), structure.VersionV02, nil, time.Minute)
	if _, err := uc.Prefilter(context.Background(), PrefilterParams{}); err == nil {
		t.Fatalf("expected error for empty symbol")
	}
}

func TestPivots(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)

	candles := NewCandlesUseCase(source, nil, time.Minute)
	uc := NewPrefilterUseCase(candles, testEngines(t), structure.VersionV02, nil, time.Minute)

	res, err := uc.Pivots(context.Background(), PivotsParams{Symbol: "AAA"})
	if err != nil {
		t.Fatalf("Pivots: %v", err)
	}
	if res.Scale != "meso" {
		t.Fatalf("default scale = %q, want meso", res.Scale)
	}
	if len(res.Pivots) == 0 {
		t.Fatalf("expected pivots on wave series")
	}
	for _, p := range res.Pivots {
		if string(p.Scale) != "meso" {
			t.Fatalf("pivot tagged %q", p.Scale)
		}
	}

	if _, err := uc.Pivots(context.Background(), PivotsParams{Symbol: "AAA", Scale: "weekly"}); err == nil {
		t.Fatalf("bad scale should error")
	}
}

func TestAnalyzeBypassesCache(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)

	candles := NewCandlesUseCase(source, nil, time.Minute)
	uc := NewPrefilterUseCase(candles, testEngines(t), structure.VersionV02, svccache.NewTTLCache(), time.Minute)

	an, err := uc.Analyze(context.Background(), "AAA", 250, "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if an.Symbol != "AAA" || an.Bars != 200 {
		t.Fatalf("unexpected analysis header: %+v", an)
	}
	if len(an.MesoPivots) == 0 || an.ATR <= 0 {
		t.Fatalf("analysis should include pivots and ATR")
	}
}

func TestGetDailyUsesCandleCache(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(120, 100, 8, 2, 10)

	uc := NewCandlesUseCase(source, pkgcache.NewMemoryCache(), time.Minute)
	if _, err := uc.GetDaily(context.Background(), "AAA", 90); err != nil {
		t.Fatalf("GetDaily: %v", err)
	}
	got, err := uc.GetDaily(context.Background(), "AAA", 90)
	if err != nil {
		t.Fatalf("GetDaily (cached): %v", err)
	}
	if source.callCount() != 1 {
		t.Fatalf("source called %d times, want 1", source.callCount())
	}
	if len(got) != 120 {
		t.Fatalf("cached series length %d, want 120", len(got))
	}
	if !got[0].Date.Equal(day(0)) {
		t.Fatalf("cached dates mangled: %v", got[0].Date)
	}
}

func TestGetCandlesValidation(t *testing.T) {
	source := newFakeCandleSource()
	uc := NewCandlesUseCase(source, nil, time.Minute)

	if _, err := uc.GetCandles(context.Background(), GetCandlesParams{}); err == nil {
		t.Fatalf("empty symbol should error")
	}

	from := day(10)
	to := day(5)
	if _, err := uc.GetCandles(context.Background(), GetCandlesParams{Symbol: "AAA", From: from, To: to}); err == nil {
		t.Fatalf("from after to should error")
	}
}

func TestGetCandlesKeepsMostRecent(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(100, 100, 8, 2, 10)

	uc := NewCandlesUseCase(source, nil, time.Minute)
	res, err := uc.GetCandles(context.Background(), GetCandlesParams{
		Symbol: "AAA",
		From:   day(0),
		To:     day(99),
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if res.Count != 10 {
		t.Fatalf("count = %d, want 10", res.Count)
	}
	if !res.Candles[len(res.Candles)-1].Date.Equal(day(99)) {
		t.Fatalf("truncation should keep the latest bars")
	}
	if res.Timeframe != "1d" {
		t.Fatalf("timeframe normalized to %q", res.Timeframe)
	}
}
