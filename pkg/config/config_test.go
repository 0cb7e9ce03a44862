package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
environment: test
server:
  port: 8080
  shutdown_timeout: 5s
backend:
  type: clickhouse
quote:
  api_key: demo
  symbols: [AAPL, MSFT]
  rate_per_minute: 60
engine:
  version: v0.2
  default_days: 250
screener:
  concurrency: 8
  scan_interval: 1h
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 8080 {
		t.Fatalf("unexpected port %d", c.Server.Port)
	}
	if c.Screener.ScanInterval != time.Hour {
		t.Fatalf("unexpected interval %v", c.Screener.ScanInterval)
	}
	if len(c.Quote.Symbols) != 2 {
		t.Fatalf("unexpected symbols %v", c.Quote.Symbols)
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	bad := `
environment: test
backend:
  type: postgres
quote:
  api_key: demo
  symbols: [AAPL]
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatalf("expected backend validation error")
	}
}

func TestLoadRejectsBadVersion(t *testing.T) {
	bad := `
environment: test
backend:
  type: both
quote:
  api_key: demo
  symbols: [AAPL]
engine:
  version: v3
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatalf("expected version validation error")
	}
}

func TestLoadWithEnvSuppliesSecrets(t *testing.T) {
	incomplete := `
environment: test
backend:
  type: clickhouse
quote:
  symbols: [AAPL]
`
	path := writeConfig(t, incomplete)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing api key error from Load")
	}

	t.Setenv("WAVESCAN_QUOTE_API_KEY", "from-env")
	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Quote.APIKey != "from-env" {
		t.Fatalf("api key = %q", c.Quote.APIKey)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("WAVESCAN_QUOTE_API_KEY", "live-key")
	t.Setenv("WAVESCAN_SYMBOLS", "NVDA,AMD,TSM")
	t.Setenv("WAVESCAN_BACKEND", "both")
	t.Setenv("WAVESCAN_SERVER_PORT", "9090")

	c, err := LoadWithEnv(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Quote.APIKey != "live-key" {
		t.Fatalf("api key override missing")
	}
	if len(c.Quote.Symbols) != 3 || c.Quote.Symbols[0] != "NVDA" {
		t.Fatalf("symbols override missing: %v", c.Quote.Symbols)
	}
	if c.Backend.Type != "both" {
		t.Fatalf("backend override missing")
	}
	if c.Server.Port != 9090 {
		t.Fatalf("port override missing")
	}
}
