package engine

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	yaml "gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultPresetsYAML []byte

type Preset struct {
	Name       string `yaml:"name"`
	Depth      int    `yaml:"depth"`
	MoveTimeMS int    `yaml:"move_time_ms"`
	ExactEmpty int    `yaml:"exact_empty"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

var (
	presetMu sync.RWMutex
	presets  = mustParsePresets(defaultPresetsYAML)
)

func mustParsePresets(raw []byte) map[string]Preset {
	m, err := parsePresets(raw)
	if err != nil {
		panic(fmt.Sprintf("engine: embedded presets: %v", err))
	}
	return m
}

func parsePresets(raw []byte) (map[string]Preset, error) {
	var f presetFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	out := make(map[string]Preset, len(f.Presets))
	for _, p := range f.Presets {
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		if err := ValidatePreset(p); err != nil {
			return nil, err
		}
		out[p.Name] = p
	}
	return out, nil
}

func ValidatePreset(p Preset) error {
	if p.Name == "" {
		return fmt.Errorf("preset name required")
	}
	if p.Depth <= 0 && p.MoveTimeMS <= 0 {
		return fmt.Errorf("preset %s does not define search limits", p.Name)
	}
	if p.Depth < 0 || p.MoveTimeMS < 0 || p.ExactEmpty < 0 {
		return fmt.Errorf("preset %s has negative limits", p.Name)
	}
	return nil
}

// LoadPresets merges presets from a YAML file over the embedded defaults.
func LoadPresets(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read presets: %w", err)
	}
	parsed, err := parsePresets(raw)
	if err != nil {
		return err
	}
	presetMu.Lock()
	for name, p := range parsed {
		presets[name] = p
	}
	presetMu.Unlock()
	return nil
}

func GetPreset(name string) (Preset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "beginner":
		key = "level1"
	case "intermediate":
		key = "level5"
	case "advanced":
		key = "level8"
	case "master":
		key = "level10"
	}
	presetMu.RLock()
	p, ok := presets[key]
	presetMu.RUnlock()
	if !ok {
		return Preset{}, fmt.Errorf("unknown strength preset: %s", name)
	}
	return p, nil
}

func (p Preset) Strength() Strength {
	return Strength{
		Level:      p.Name,
		Depth:      p.Depth,
		MoveTime:   time.Duration(p.MoveTimeMS) * time.Millisecond,
		ExactEmpty: p.ExactEmpty,
	}
}

// MinMoveTime is the slice a timed engine gets once its clock is (nearly)
// exhausted.
const MinMoveTime = 10 * time.Millisecond

// Budget shrinks the per-move time so the remaining clock covers the
// engine's share of the moves left. It is only called for timed games, so
// an exhausted clock yields MinMoveTime rather than the preset time.
func (s Strength) Budget(remaining time.Duration, empties int) Strength {
	movesLeft := max(1, (empties+1)/2)
	slice := max(remaining/time.Duration(movesLeft), MinMoveTime)
	if s.MoveTime <= 0 || slice < s.MoveTime {
		s.MoveTime = slice
	}
	return s
}
