package config_test

import (
	"os"
	"testing"

	"github.com/sbarnard/connpool/config"
)

func TestLoadConfigFromEnv(t *testing.T) {
	os.Setenv("ENV", "test")
	os.Setenv("POOL_TARGETS", " http://a:1 , http://b:2 ,,")
	os.Setenv("POOL_IDLE_TIMEOUT_MS", "500")
	os.Setenv("POOL_CAPACITY", "10")
	defer func() {
		os.Unsetenv("ENV")
		os.Unsetenv("POOL_TARGETS")
		os.Unsetenv("POOL_IDLE_TIMEOUT_MS")
		os.Unsetenv("POOL_CAPACITY")
	}()

	cfg := config.Load()
	if cfg.Env != "test" {
		t.Fatalf("Env = %q, want test", cfg.Env)
	}
	want := []string{"http://a:1", "http://b:2"}
	if len(cfg.Targets) != len(want) || cfg.Targets[0] != want[0] || cfg.Targets[1] != want[1] {
		t.Fatalf("Targets = %v, want %v", cfg.Targets, want)
	}
	if cfg.IdleTimeoutMs != 500 {
		t.Fatalf("IdleTimeoutMs = %d, want 500", cfg.IdleTimeoutMs)
	}
	if cfg.Capacity != 10 {
		t.Fatalf("Capacity = %d, want 10", cfg.Capacity)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	os.Unsetenv("POOL_TARGETS")
	cfg := config.Load()
	if cfg.Targets != nil {
		t.Fatalf("Targets = %v, want nil when unset", cfg.Targets)
	}
	if cfg.IdleTimeoutMs != 2000 {
		t.Fatalf("IdleTimeoutMs default = %d, want 2000", cfg.IdleTimeoutMs)
	}
	if cfg.DebugAddr != ":8090" {
		t.Fatalf("DebugAddr default = %q, want :8090", cfg.DebugAddr)
	}
}
