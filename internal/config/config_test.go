package config

import (
	"testing"
	"time"

	"github.com/park285/cheese-reversi/internal/reversi"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENGINE_KIND", "")
	t.Setenv("ENGINE_PATH", "/usr/local/bin/edax")
	t.Setenv("ENGINE_ARGS", "-n 1  -q")
	t.Setenv("REVERSI_MODE", "")
	t.Setenv("SESSION_TTL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != reversi.ModeHumanBlack || cfg.Level != "level5" || cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.EngineArgs) != 3 || cfg.EngineArgs[2] != "-q" {
		t.Fatalf("engine args %q", cfg.EngineArgs)
	}
}

func TestLoadRemote(t *testing.T) {
	t.Setenv("ENGINE_KIND", "remote")
	t.Setenv("ENGINE_URL", "http://engine:9000")
	t.Setenv("REVERSI_MODE", "analysis")
	t.Setenv("REVERSI_TIME_BUDGET_MS", "60000")
	t.Setenv("REVERSI_HINT", "true")
	t.Setenv("SESSION_TTL", "600")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != reversi.ModeAnalysis || cfg.TimeBudget != time.Minute || !cfg.HintEnabled || cfg.SessionTTL != 10*time.Minute {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsMissingEngine(t *testing.T) {
	t.Setenv("ENGINE_KIND", "remote")
	t.Setenv("ENGINE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without ENGINE_URL")
	}
	t.Setenv("ENGINE_KIND", "nboard")
	t.Setenv("ENGINE_PATH", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without ENGINE_PATH")
	}
	t.Setenv("ENGINE_PATH", "/bin/engine")
	t.Setenv("REVERSI_MODE", "chess")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
