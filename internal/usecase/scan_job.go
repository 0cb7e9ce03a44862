package usecase

import (
	"context"
	"fmt"

	"WaveScan/internal/domain/models"
	"WaveScan/pkg/queue"
)

// ScanJobType is the queue message type carrying a ScanRequest payload.
const ScanJobType = "structure_scan"

// ScanJob runs queued scan requests. Submitting over the queue keeps the
// HTTP handler fast and lets failed runs go through the retry machinery.
type ScanJob struct {
	screener *ScreenerUseCase
}

func NewScanJob(screener *ScreenerUseCase) *ScanJob {
	return &ScanJob{screener: screener}
}

func (j *ScanJob) Name() string { return "structure-scan" }

func (j *ScanJob) Type() string { return ScanJobType }

func (j *ScanJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[models.ScanRequest](payload)
	if err != nil {
		return fmt.Errorf("scan job payload: %w", err)
	}
	if req.RequestedBy == "" {
		req.RequestedBy = "queue"
	}
	_, err = j.screener.Scan(ctx, *req)
	return err
}

var _ queue.Job = (*ScanJob)(nil)
