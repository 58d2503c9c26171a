package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-reversi/internal/reversi"
)

type EngineKind string

const (
	EngineNBoard EngineKind = "nboard"
	EngineRemote EngineKind = "remote"
)

type AppConfig struct {
	Mode        reversi.Mode
	Level       string
	TimeBudget  time.Duration
	HintEnabled bool
	HintLevel   string
	PresetsFile string
	MessagesDir string

	EngineKind     EngineKind
	EnginePath     string
	EngineArgs     []string
	EngineURL      string
	EngineCapacity int

	RedisURL    string
	DatabaseURL string
	SessionTTL  time.Duration

	ListenAddr string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Mode:       reversi.ModeHumanBlack,
		Level:      "level5",
		EngineKind: EngineNBoard,
		SessionTTL: 24 * time.Hour,
		ListenAddr: ":8080",
	}

	if v := strings.TrimSpace(os.Getenv("REVERSI_MODE")); v != "" {
		mode, err := reversi.ParseMode(v)
		if err != nil {
			return nil, fmt.Errorf("REVERSI_MODE: %w", err)
		}
		cfg.Mode = mode
	}
	if v := strings.TrimSpace(os.Getenv("REVERSI_LEVEL")); v != "" {
		cfg.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("REVERSI_TIME_BUDGET_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.TimeBudget = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("REVERSI_HINT")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.HintEnabled = b
		}
	}
	cfg.HintLevel = strings.TrimSpace(os.Getenv("REVERSI_HINT_LEVEL"))
	cfg.PresetsFile = strings.TrimSpace(os.Getenv("PRESETS_FILE"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("ENGINE_KIND")); v != "" {
		cfg.EngineKind = EngineKind(strings.ToLower(v))
	}
	cfg.EnginePath = strings.TrimSpace(os.Getenv("ENGINE_PATH"))
	cfg.EngineArgs = strings.Fields(os.Getenv("ENGINE_ARGS"))
	cfg.EngineURL = strings.TrimSpace(os.Getenv("ENGINE_URL"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_CAPACITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineCapacity = n
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	switch cfg.EngineKind {
	case EngineNBoard:
		if cfg.EnginePath == "" {
			return nil, errors.New("ENGINE_PATH is required for the nboard engine")
		}
	case EngineRemote:
		if cfg.EngineURL == "" {
			return nil, errors.New("ENGINE_URL is required for the remote engine")
		}
	default:
		return nil, fmt.Errorf("ENGINE_KIND %q is not supported", cfg.EngineKind)
	}
	return cfg, nil
}
