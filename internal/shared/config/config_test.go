package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "ledger-service", cfg.ServiceName)
	assert.Equal(t, "event_results", cfg.TopicResults)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, "KHR", cfg.DefaultCurrency)
	assert.Equal(t, int64(10000), cfg.StartingBalance)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("SETTLEMENT_WORKERS", "3")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("HEARTBEAT_INTERVAL", "5s")
	t.Setenv("SESSION_BUFFER", "not-a-number")

	cfg := Load()
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Brokers())
	assert.Equal(t, 3, cfg.SettlementWorkers)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 64, cfg.SessionBuffer)
}

func TestOriginAllowed(t *testing.T) {
	cfg := Config{AllowedOrigins: "*"}
	assert.True(t, cfg.OriginAllowed("https://evil.example"))

	cfg.AllowedOrigins = "https://app.livebet.local, http://localhost:3000"
	assert.True(t, cfg.OriginAllowed("http://localhost:3000"))
	assert.True(t, cfg.OriginAllowed(""))
	assert.False(t, cfg.OriginAllowed("https://evil.example"))
}
