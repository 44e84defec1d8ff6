package config

import (
    "testing"
    "time"
)

func TestLoadRateLimitConfig(t *testing.T) {
    for _, k := range []string{"RATE_LIMIT_KEY_STRATEGY", "RATE_LIMIT_PREFIX", "RATE_LIMIT_CAPACITY", "RATE_LIMIT_REFILL_EVERY"} {
        t.Setenv(k, "")
    }
    cfg := LoadRateLimitConfig()
    if cfg.KeyStrategy != "subject_route" || cfg.Prefix != "rl:admission" || cfg.Capacity != 30 {
        t.Fatalf("defaults = %+v", cfg)
    }

    t.Setenv("RATE_LIMIT_KEY_STRATEGY", "ip_route")
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_EVERY", "250ms")
    cfg = LoadRateLimitConfig()
    if cfg.KeyStrategy != "ip_route" {
        t.Fatalf("strategy = %q", cfg.KeyStrategy)
    }
    if cfg.Capacity != 1 || cfg.RefillTokens != 1 || cfg.RefillInterval != 250*time.Millisecond {
        t.Fatalf("clamped = %+v", cfg)
    }
}
