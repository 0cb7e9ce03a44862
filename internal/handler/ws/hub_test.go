package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"WaveScan/internal/domain/models"
	applogger "WaveScan/pkg/logger"

	"github.com/gorilla/websocket"
)

func testHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	hub := NewHub(l)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return env.Type, env.Payload
}

func TestHubDeliversAlerts(t *testing.T) {
	hub, srv, cancel := testHub(t)
	defer cancel()
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	typ, _ := readEnvelope(t, conn)
	if typ != "status" {
		t.Fatalf("first message type = %q, want status", typ)
	}

	// Wait for registration before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	alert := models.CageAlert{
		Symbol:      "NVDA",
		Direction:   models.BreakUp,
		StrengthATR: 1.4,
		Price:       132.5,
		Boundary:    130.0,
		At:          time.Now().UTC(),
	}
	hub.Broadcast(ChannelAlerts, alert)

	typ, payload := readEnvelope(t, conn)
	if typ != ChannelAlerts {
		t.Fatalf("type = %q, want %q", typ, ChannelAlerts)
	}
	var got models.CageAlert
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Symbol != "NVDA" || got.Direction != models.BreakUp {
		t.Fatalf("alert = %+v", got)
	}
}

func TestHubHonorsUnsubscribe(t *testing.T) {
	hub, srv, cancel := testHub(t)
	defer cancel()
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if typ, _ := readEnvelope(t, conn); typ != "status" {
		t.Fatalf("expected status first")
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	msg, _ := json.Marshal(subscribeMsg{Action: "unsubscribe", Channels: []string{ChannelScans}})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	// The read pump applies the change asynchronously.
	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(ChannelScans, map[string]string{"scan_id": "s1"})
	hub.Broadcast(ChannelAlerts, models.CageAlert{Symbol: "AAPL", Direction: models.BreakDown})

	typ, payload := readEnvelope(t, conn)
	if typ != ChannelAlerts {
		t.Fatalf("type = %q, want %q (scans should be filtered)", typ, ChannelAlerts)
	}
	var got models.CageAlert
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Symbol != "AAPL" {
		t.Fatalf("alert = %+v", got)
	}
}

func TestHubTracksClientCount(t *testing.T) {
	hub, srv, cancel := testHub(t)
	defer cancel()
	defer srv.Close()

	conn := dial(t, srv)
	if typ, _ := readEnvelope(t, conn); typ != "status" {
		t.Fatalf("expected status first")
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want 1", hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d after close, want 0", hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
