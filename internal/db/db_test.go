package db

import (
	"testing"
	"time"

	"educamp/internal/config"
)

func TestPoolConfig_UsesServiceSettings(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL:       "postgres://u:p@localhost:5432/edu",
		DBMaxConns:        20,
		DBMinConns:        4,
		DBMaxConnLifetime: time.Hour,
		DBMaxConnIdleTime: 2 * time.Minute,
		DBConnectTimeout:  3 * time.Second,
	}
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	if poolCfg.MaxConns != 20 || poolCfg.MinConns != 4 {
		t.Fatalf("unexpected pool size %d/%d", poolCfg.MinConns, poolCfg.MaxConns)
	}
	if poolCfg.MaxConnLifetime != time.Hour || poolCfg.MaxConnIdleTime != 2*time.Minute {
		t.Fatalf("unexpected lifetimes %v %v", poolCfg.MaxConnLifetime, poolCfg.MaxConnIdleTime)
	}
	if poolCfg.ConnConfig.ConnectTimeout != 3*time.Second {
		t.Fatalf("unexpected connect timeout %v", poolCfg.ConnConfig.ConnectTimeout)
	}
}

func TestPoolConfig_ClampsMinConns(t *testing.T) {
	poolCfg, err := PoolConfig(&config.Config{DatabaseURL: "postgres://localhost/edu", DBMaxConns: 2, DBMinConns: 8})
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	if poolCfg.MinConns != 2 {
		t.Fatalf("expected min conns clamped to 2, got %d", poolCfg.MinConns)
	}
}

func TestPoolConfig_RejectsBadURL(t *testing.T) {
	if _, err := PoolConfig(&config.Config{DatabaseURL: "://bad"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
