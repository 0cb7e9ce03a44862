package queue

import (
	"encoding/json"
	"testing"
)

type scanRequest struct {
	Symbol string `json:"symbol"`
	Days   int    `json:"days"`
}

func TestParsePayloadForms(t *testing.T) {
	want := scanRequest{Symbol: "AAPL", Days: 250}

	check := func(t *testing.T, payload interface{}) {
		t.Helper()
		got, err := ParsePayload[scanRequest](payload)
		if err != nil {
			t.Fatalf("ParsePayload: %v", err)
		}
		if *got != want {
			t.Fatalf("got %+v, want %+v", *got, want)
		}
	}

	check(t, want)
	check(t, &want)

	raw, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	check(t, json.RawMessage(raw))

	check(t, map[string]interface{}{"symbol": "AAPL", "days": 250})

	if _, err := ParsePayload[scanRequest](42); err == nil {
		t.Fatal("expected error for unsupported payload type")
	}
}

func TestNormalizePayload(t *testing.T) {
	out := normalizePayload(map[string]interface{}{"symbol": "MSFT"})
	raw, ok := out.(json.RawMessage)
	if !ok {
		t.Fatalf("expected json.RawMessage, got %T", out)
	}
	var req scanRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Symbol != "MSFT" {
		t.Fatalf("symbol = %q", req.Symbol)
	}

	// Non-map payloads pass through untouched.
	if got := normalizePayload("plain"); got != "plain" {
		t.Fatalf("got %v", got)
	}
}

func TestQueueModeString(t *testing.T) {
	cases := map[QueueMode]string{
		ModeProducerConsumer: "producer-consumer",
		ModeProducerOnly:     "producer-only",
		ModeConsumerOnly:     "consumer-only",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Fatalf("mode %d = %q, want %q", mode, got, want)
		}
	}
}

func TestKeyPrefixOption(t *testing.T) {
	q := NewRedisQueue(nil, nil, nil, ModeProducerOnly, WithKeyPrefix(""))
	if got := q.queueKey(); got != "wavescan:queue:messages" {
		t.Fatalf("default queue key = %q", got)
	}

	q = NewRedisQueue(nil, nil, nil, ModeProducerOnly, WithKeyPrefix("screener:jobs"))
	if got := q.retryKey(); got != "screener:jobs:retry" {
		t.Fatalf("prefixed retry key = %q", got)
	}
}
