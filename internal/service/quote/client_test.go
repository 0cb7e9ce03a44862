package quote

import (
	"errors"
	"testing"
	"time"
)

const candlePayload = `{
	"s": "ok",
	"t": [1704153600, 1704240000, 1704326400],
	"o": [100.0, 101.5, 102.0],
	"h": [102.0, 103.0, 104.5],
	"l": [99.5, 100.5, 101.0],
	"c": [101.5, 102.0, 104.0],
	"v": [1200, 1500, 900]
}`

func TestParseCandles(t *testing.T) {
	candles, err := parseCandles([]byte(candlePayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	first := candles[0]
	if first.Open != 100.0 || first.High != 102.0 || first.Low != 99.5 || first.Close != 101.5 {
		t.Fatalf("unexpected first candle %+v", first)
	}
	if first.Volume != 1200 {
		t.Fatalf("unexpected volume %v", first.Volume)
	}
	if first.Date != time.Unix(1704153600, 0).UTC() {
		t.Fatalf("unexpected date %v", first.Date)
	}
	if !candles[0].Date.Before(candles[1].Date) || !candles[1].Date.Before(candles[2].Date) {
		t.Fatalf("dates not ascending")
	}
}

func TestParseCandlesNoData(t *testing.T) {
	_, err := parseCandles([]byte(`{"s":"no_data"}`))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestParseCandlesBadStatus(t *testing.T) {
	if _, err := parseCandles([]byte(`{"s":"error"}`)); err == nil {
		t.Fatalf("expected error status to fail")
	}
}

func TestParseCandlesRaggedArrays(t *testing.T) {
	body := `{"s":"ok","t":[1,2,3],"o":[1,2],"h":[1,2,3],"l":[1,2,3],"c":[1,2,3]}`
	if _, err := parseCandles([]byte(body)); err == nil {
		t.Fatalf("expected ragged arrays to fail")
	}
}

func TestParseCandlesMissingVolume(t *testing.T) {
	body := `{"s":"ok","t":[1704153600],"o":[10],"h":[11],"l":[9],"c":[10.5]}`
	candles, err := parseCandles([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if candles[0].Volume != 0 {
		t.Fatalf("expected zero volume, got %v", candles[0].Volume)
	}
}

func TestPacerBurstClamp(t *testing.T) {
	if got := newPacer(600).limiter.Burst(); got != 5 {
		t.Fatalf("expected burst 5, got %d", got)
	}
	if got := newPacer(5).limiter.Burst(); got != 1 {
		t.Fatalf("expected burst 1, got %d", got)
	}
	if got := newPacer(0).limiter.Burst(); got < 1 {
		t.Fatalf("expected defaulted pacer, got burst %d", got)
	}
}
