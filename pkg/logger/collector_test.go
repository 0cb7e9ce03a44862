package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	if logs, ok := payload.([]AggregatedLogEntry); ok {
		p.batches = append(p.batches, logs)
	}
	return nil
}

func (p *capturePublisher) take() (string, [][]AggregatedLogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.topic, p.batches
}

func TestCollectorDeduplicatesRepeats(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "logs.aggregated",
		Publisher:      pub,
	})

	fields := map[string]interface{}{"symbol": "WAVY"}
	for i := 0; i < 5; i++ {
		c.AddLog("error", "quote fetch failed", fields, "internal/usecase/screener.go:80")
	}
	c.AddLog("warn", "slow scan", nil, "internal/usecase/screener.go:95")
	c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		topic, batches := pub.take()
		if len(batches) > 0 {
			if topic != "logs.aggregated" {
				t.Fatalf("topic = %q", topic)
			}
			if len(batches[0]) != 2 {
				t.Fatalf("flushed %d entries, want 2", len(batches[0]))
			}
			for _, e := range batches[0] {
				if e.Message == "quote fetch failed" && e.Count != 5 {
					t.Fatalf("repeat count = %d, want 5", e.Count)
				}
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no flush after Close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs.aggregated",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("error", "first", nil, "a.go:1")
	c.AddLog("error", "second", nil, "a.go:2")

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, batches := pub.take()
		if len(batches) > 0 {
			if len(batches[0]) != 2 {
				t.Fatalf("flushed %d entries, want 2", len(batches[0]))
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("threshold did not trigger a flush")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
