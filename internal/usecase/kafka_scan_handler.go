package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"WaveScan/internal/domain/models"
	domrepo "WaveScan/internal/domain/repository"
	pkgkafka "WaveScan/pkg/kafka"
)

// KafkaScanHandler consumes scan requests from Kafka and runs them. The
// message body is a ScanRequest; an empty symbol list means the configured
// universe.
type KafkaScanHandler struct {
	topic    string
	screener *ScreenerUseCase
	metrics  domrepo.Metrics
	timeout  time.Duration
}

func NewKafkaScanHandler(topic string, screener *ScreenerUseCase, metrics domrepo.Metrics) *KafkaScanHandler {
	return &KafkaScanHandler{topic: topic, screener: screener, metrics: metrics, timeout: 10 * time.Minute}
}

func (h *KafkaScanHandler) Topic() string { return h.topic }

func (h *KafkaScanHandler) Handle(ctx context.Context, b []byte) error {
	var req models.ScanRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode scan request: %w", err)
	}
	if req.RequestedBy == "" {
		req.RequestedBy = "kafka"
	}
	// A trace_id header on the request becomes the scan id, so the caller
	// can follow its run through the result events.
	if req.ScanID == "" {
		req.ScanID = pkgkafka.TraceIDFromContext(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	summary, err := h.screener.Scan(ctx, req)
	h.metrics.RecordLatency("kafka_scan", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_scan")
		return err
	}
	if summary.Failed > 0 {
		h.metrics.RecordError("consumer_scan_partial")
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaScanHandler)(nil)
