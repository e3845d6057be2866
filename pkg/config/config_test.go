package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if c.Input.HeaderRow != 3 || c.Output.Dir != "data" {
		t.Fatalf("input/output defaults: %+v %+v", c.Input, c.Output)
	}
	if c.Thresholds.Mode != "rolling" || c.Thresholds.Window != 20 || c.Thresholds.MinPeriods != 10 {
		t.Fatalf("threshold defaults: %+v", c.Thresholds)
	}
	if c.Server.ReadTimeout != 10*time.Second {
		t.Fatalf("read timeout = %v", c.Server.ReadTimeout)
	}
	if len(c.Kafka.Brokers) != 1 || c.Kafka.Brokers[0] != "localhost:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
environment: production
input:
  path: /srv/nifty.csv
  header_row: 1
thresholds:
  mode: frozen
server:
  port: 9090
  write_timeout: 30s
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Environment != "production" || c.Input.Path != "/srv/nifty.csv" || c.Input.HeaderRow != 1 {
		t.Fatalf("unexpected: %+v", c)
	}
	if c.Thresholds.Mode != "frozen" || c.Thresholds.Window != 20 {
		t.Fatalf("thresholds: %+v", c.Thresholds)
	}
	if c.Server.Port != 9090 || c.Server.WriteTimeout != 30*time.Second || c.Server.ReadTimeout != 10*time.Second {
		t.Fatalf("server: %+v", c.Server)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad mode":      "thresholds:\n  mode: weekly\n",
		"queue noredis": "queue:\n  enabled: true\n",
		"min > window":  "thresholds:\n  window: 5\n  min_periods: 10\n",
		"bad log level": "log:\n  level: loud\n",
	}
	for name, yml := range cases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	c, _ := Default()
	env := map[string]string{
		"NIFTY_INPUT":      "history.csv",
		"NIFTY_HEADER_ROW": "1",
		"THRESHOLD_MODE":   "frozen",
		"KAFKA_BROKERS":    "k1:9092,k2:9092",
		"REDIS_ENABLED":    "true",
		"HTTP_PORT":        "not-a-number",
	}
	c.applyEnv(func(k string) string { return env[k] })

	if c.Input.Path != "history.csv" || c.Input.HeaderRow != 1 || c.Thresholds.Mode != "frozen" {
		t.Fatalf("env not applied: %+v %+v", c.Input, c.Thresholds)
	}
	if strings.Join(c.Kafka.Brokers, ",") != "k1:9092,k2:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if !c.Redis.Enabled {
		t.Fatalf("redis should be enabled")
	}
	if c.Server.Port != 8080 {
		t.Fatalf("invalid port override should be ignored, got %d", c.Server.Port)
	}
}
