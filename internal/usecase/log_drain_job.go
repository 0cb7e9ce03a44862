package usecase

import (
	"context"
	"fmt"
	"time"

	applogger "WaveScan/pkg/logger"
	"WaveScan/pkg/queue"
)

// LogDrainJobType is the queue message type carrying aggregated log batches.
const LogDrainJobType = "logs_aggregated"

// LogDrainJob consumes aggregated error batches flushed by the log collector
// and re-emits each distinct message as a single summary line. An error storm
// on any producer collapses to one line per flush on the consumer.
type LogDrainJob struct {
	topic string
	l     *applogger.Logger
}

func NewLogDrainJob(topic string, l *applogger.Logger) *LogDrainJob {
	if topic == "" {
		topic = LogDrainJobType
	}
	return &LogDrainJob{topic: topic, l: l}
}

func (j *LogDrainJob) Name() string { return "log-drain" }

func (j *LogDrainJob) Type() string { return j.topic }

func (j *LogDrainJob) Handle(_ context.Context, payload interface{}) error {
	entries, err := queue.ParsePayload[[]applogger.AggregatedLogEntry](payload)
	if err != nil {
		return fmt.Errorf("log drain payload: %w", err)
	}
	// Summaries go out at warn level; warn lines are not collected, so a
	// drained batch can never feed back into the collector.
	for _, e := range *entries {
		j.l.Warn("error hotspot",
			applogger.String("message", e.Message),
			applogger.String("caller", e.Caller),
			applogger.Int("count", e.Count),
			applogger.String("first_seen", e.FirstSeen.Format(time.RFC3339)),
			applogger.String("last_seen", e.LastSeen.Format(time.RFC3339)))
	}
	return nil
}

var _ queue.Job = (*LogDrainJob)(nil)
