package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"WaveScan/internal/domain/models"
)

func TestKafkaScanHandlerRunsRequest(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)

	screener := newTestScreener(t, source, []string{"AAA"}, nil, newFakeMetrics())
	h := NewKafkaScanHandler("wavescan.scan.requests", screener, newFakeMetrics())

	if h.Topic() != "wavescan.scan.requests" {
		t.Fatalf("topic = %q", h.Topic())
	}

	b, _ := json.Marshal(models.ScanRequest{Symbols: []string{"AAA"}, Days: 250})
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	summary, ok := screener.LastSummary()
	if !ok || summary.Total != 1 || summary.Succeeded != 1 {
		t.Fatalf("scan not run: %+v", summary)
	}
}

func TestKafkaScanHandlerRejectsGarbage(t *testing.T) {
	metrics := newFakeMetrics()
	h := NewKafkaScanHandler("t", nil, metrics)

	if err := h.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
	if metrics.errorCount("consumer_unmarshal") != 1 {
		t.Fatalf("unmarshal error not recorded")
	}
}
