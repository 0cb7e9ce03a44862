package kafka

import (
	"context"

	"WaveScan/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// TraceIDHeader is the message header carrying a correlation id across
// produce and consume.
const TraceIDHeader = "trace_id"

// ConsumerHook observes message handling. BeforeHandle runs ahead of the
// handler and may replace the context, message or payload; returning an
// error skips the handler and routes the message through error handling.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook is the default hook.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, []byte, error) {}

type ctxKey int

const ctxTraceID ctxKey = iota

// TraceIDFromContext returns the trace id TracingHook extracted from the
// message headers, or "" when there was none.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxTraceID).(string)
	return id
}

// TracingHook threads the trace_id header into the handler context and
// logs handling outcomes. Failures log the partition and offset so a
// poison message can be located from the logs alone.
type TracingHook struct {
	l *logger.Logger
}

func NewTracingHook(l *logger.Logger) *TracingHook {
	return &TracingHook{l: l}
}

func (h *TracingHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	for _, hd := range km.Headers {
		if hd.Key == TraceIDHeader && len(hd.Value) > 0 {
			ctx = context.WithValue(ctx, ctxTraceID, string(hd.Value))
			break
		}
	}
	return ctx, km, data, nil
}

func (h *TracingHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Warn("kafka message failed",
			logger.String("topic", topic),
			logger.String("trace_id", TraceIDFromContext(ctx)),
			logger.Int("partition", km.Partition),
			logger.Int64("offset", km.Offset),
			logger.Error(err))
		return
	}
	h.l.Debug("kafka message handled",
		logger.String("topic", topic),
		logger.String("trace_id", TraceIDFromContext(ctx)),
		logger.Int64("offset", km.Offset))
}

func (h *TracingHook) OnError(context.Context, string, kafka.Message, []byte, error) {}
