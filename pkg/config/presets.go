package config

import (
	"fmt"
	"sort"

	"github.com/nm-morais/go-boxtimer/pkg/errors"
)

// Fixed preset catalog. Not user-editable; custom workouts go through
// TimerConfig directly or through a config file.
var presets = map[string]TimerConfig{
	"beginner": {
		TotalRounds:     3,
		WorkDuration:    120,
		RestDuration:    60,
		PrepDuration:    10,
		EnableWarning:   true,
		WarningDuration: DefaultWarningDuration,
	},
	"intermediate": {
		TotalRounds:     5,
		WorkDuration:    180,
		RestDuration:    60,
		PrepDuration:    10,
		EnableWarning:   true,
		WarningDuration: DefaultWarningDuration,
	},
	"advanced": {
		TotalRounds:     12,
		WorkDuration:    180,
		RestDuration:    60,
		PrepDuration:    10,
		EnableWarning:   true,
		WarningDuration: DefaultWarningDuration,
	},
}

// ResolvePreset translates a preset name into a concrete TimerConfig.
// Unknown names are a ConfigInvalid error, never a silent fallback.
func ResolvePreset(name string) (TimerConfig, errors.Error) {
	preset, ok := presets[name]
	if !ok {
		return TimerConfig{}, invalid(fmt.Sprintf("unknown preset %q (known: %v)", name, PresetNames()))
	}
	return preset, nil
}

// PresetNames lists the known preset names in stable order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
