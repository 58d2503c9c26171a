package game

import (
	"fmt"
	"time"

	"github.com/park285/cheese-reversi/internal/dispatch"
	"github.com/park285/cheese-reversi/internal/engine"
	"github.com/park285/cheese-reversi/internal/reversi"
)

const defaultLevel = "level5"

// Options are the per-game settings as the caller names them; presets are
// resolved when the game starts.
type Options struct {
	Mode        reversi.Mode
	Level       string
	HintEnabled bool
	HintLevel   string
	TimeBudget  time.Duration
}

func (o Options) settings() (dispatch.Settings, error) {
	mode, err := reversi.ParseMode(string(o.Mode))
	if err != nil {
		return dispatch.Settings{}, err
	}
	level := o.Level
	if level == "" {
		level = defaultLevel
	}
	preset, err := engine.GetPreset(level)
	if err != nil {
		return dispatch.Settings{}, err
	}
	hintLevel := o.HintLevel
	if hintLevel == "" {
		hintLevel = level
	}
	hintPreset, err := engine.GetPreset(hintLevel)
	if err != nil {
		return dispatch.Settings{}, fmt.Errorf("hint level: %w", err)
	}
	if o.TimeBudget < 0 {
		return dispatch.Settings{}, fmt.Errorf("negative time budget")
	}
	return dispatch.Settings{
		Mode:         mode,
		Strength:     preset.Strength(),
		HintEnabled:  o.HintEnabled,
		HintStrength: hintPreset.Strength(),
		TimeBudget:   o.TimeBudget,
	}, nil
}
