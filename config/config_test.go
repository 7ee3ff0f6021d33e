package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngineDefaults(t *testing.T) {
	var engine EngineConfig
	assert.Equal(t, time.Hour, engine.WorkerInterval())
	assert.Equal(t, 24*time.Hour, engine.DedupWindow())
	assert.Equal(t, 4*time.Hour, engine.PendingMargin())
	assert.Equal(t, 4, engine.EffectivePoolSize())
}

func TestEngineOverrides(t *testing.T) {
	engine := EngineConfig{
		WorkerIntervalSeconds: 60,
		DedupWindowHours:      48,
		PendingMarginHours:    2,
		PoolSize:              8,
	}
	assert.Equal(t, time.Minute, engine.WorkerInterval())
	assert.Equal(t, 48*time.Hour, engine.DedupWindow())
	assert.Equal(t, 2*time.Hour, engine.PendingMargin())
	assert.Equal(t, 8, engine.EffectivePoolSize())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "munify_test")
	t.Setenv("PORT", "9090")
	t.Setenv("ESCALATION_WORKER_INTERVAL_SECONDS", "120")
	t.Setenv("ESCALATION_DEDUP_WINDOW_HOURS", "12")
	t.Setenv("JWT_TTL_HOURS", "8")

	cfg := LoadConfig()
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "munify_test", cfg.Database.DBName)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Engine.WorkerInterval())
	assert.Equal(t, 12*time.Hour, cfg.Engine.DedupWindow())
	assert.Equal(t, 8, cfg.Auth.TokenTTLHours)
}

func TestBadIntFallsBackToDefault(t *testing.T) {
	t.Setenv("ESCALATION_POOL_SIZE", "lots")
	cfg := LoadConfig()
	assert.Equal(t, 4, cfg.Engine.EffectivePoolSize())
}
