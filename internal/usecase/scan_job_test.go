package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"WaveScan/internal/domain/models"
)

func TestScanJobHandlesQueuedRequest(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)

	screener := newTestScreener(t, source, []string{"AAA"}, nil, newFakeMetrics())
	job := NewScanJob(screener)

	if job.Type() != ScanJobType {
		t.Fatalf("job type = %q", job.Type())
	}

	// queue delivery path: payload arrives as raw JSON
	payload, _ := json.Marshal(models.ScanRequest{Symbols: []string{"AAA"}})
	if err := job.Handle(context.Background(), json.RawMessage(payload)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	summary, ok := screener.LastSummary()
	if !ok || summary.Total != 1 {
		t.Fatalf("queued scan did not run: %+v", summary)
	}
	if summary.Results[0].Symbol != "AAA" {
		t.Fatalf("scanned %q", summary.Results[0].Symbol)
	}
}

func TestScanJobDirectPayload(t *testing.T) {
	source := newFakeCandleSource()
	source.series["AAA"] = waveSeries(200, 100, 8, 2, 10)

	screener := newTestScreener(t, source, []string{"AAA"}, nil, newFakeMetrics())
	job := NewScanJob(screener)

	req := models.ScanRequest{Symbols: []string{"AAA"}}
	if err := job.Handle(context.Background(), &req); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, ok := screener.LastSummary(); !ok {
		t.Fatalf("scan did not run")
	}
}

func TestScanJobRejectsBadPayload(t *testing.T) {
	job := NewScanJob(nil)
	if err := job.Handle(context.Background(), 42); err == nil {
		t.Fatalf("expected payload error")
	}
}
