package config_test

import (
	"path/filepath"
	"testing"

	"github.com/nm-morais/go-boxtimer/pkg/config"
	"github.com/nm-morais/go-boxtimer/pkg/errors"
	"github.com/nm-morais/go-boxtimer/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() config.TimerConfig {
	return config.TimerConfig{
		WorkDuration:    120,
		RestDuration:    60,
		PrepDuration:    10,
		TotalRounds:     3,
		EnableWarning:   true,
		WarningDuration: 10,
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	require.Nil(t, validConfig().Validate())

	noPrep := validConfig()
	noPrep.PrepDuration = 0
	require.Nil(t, noPrep.Validate())

	noWarning := validConfig()
	noWarning.EnableWarning = false
	noWarning.WarningDuration = 0
	require.Nil(t, noWarning.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.TimerConfig)
	}{
		{"zero work", func(c *config.TimerConfig) { c.WorkDuration = 0 }},
		{"negative work", func(c *config.TimerConfig) { c.WorkDuration = -5 }},
		{"zero rest", func(c *config.TimerConfig) { c.RestDuration = 0 }},
		{"negative prep", func(c *config.TimerConfig) { c.PrepDuration = -1 }},
		{"zero rounds", func(c *config.TimerConfig) { c.TotalRounds = 0 }},
		{"rounds above max", func(c *config.TimerConfig) { c.TotalRounds = config.MaxRounds + 1 }},
		{"warning equals work", func(c *config.TimerConfig) { c.WarningDuration = c.WorkDuration }},
		{"warning above work", func(c *config.TimerConfig) { c.WarningDuration = c.WorkDuration + 1 }},
		{"zero warning while enabled", func(c *config.TimerConfig) { c.WarningDuration = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.NotNil(t, err)
			assert.Equal(t, errors.ConfigInvalid, err.Code())
			assert.NotEmpty(t, err.Reason())
		})
	}
}

func TestApplyMergesOnlySetFields(t *testing.T) {
	cfg := validConfig()
	newWork := 90
	disable := false
	merged := cfg.Apply(config.Patch{WorkDuration: &newWork, EnableWarning: &disable})

	assert.Equal(t, 90, merged.WorkDuration)
	assert.False(t, merged.EnableWarning)
	assert.Equal(t, cfg.RestDuration, merged.RestDuration)
	assert.Equal(t, cfg.TotalRounds, merged.TotalRounds)

	// The receiver is untouched.
	assert.Equal(t, 120, cfg.WorkDuration)
	assert.True(t, cfg.EnableWarning)
}

func TestPhaseDurations(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "2m0s", cfg.PhaseDuration(state.PhaseWork).String())
	assert.Equal(t, "1m0s", cfg.PhaseDuration(state.PhaseRest).String())
	assert.Equal(t, "10s", cfg.PhaseDuration(state.PhasePreparation).String())
	assert.Equal(t, "10s", cfg.WarningThreshold().String())

	cfg.EnableWarning = false
	assert.Zero(t, cfg.WarningThreshold())
}

func TestResolvePreset(t *testing.T) {
	beginner, err := config.ResolvePreset("beginner")
	require.Nil(t, err)
	assert.Equal(t, 3, beginner.TotalRounds)
	assert.Equal(t, 120, beginner.WorkDuration)
	assert.Equal(t, 60, beginner.RestDuration)

	intermediate, err := config.ResolvePreset("intermediate")
	require.Nil(t, err)
	assert.Equal(t, 5, intermediate.TotalRounds)
	assert.Equal(t, 180, intermediate.WorkDuration)

	advanced, err := config.ResolvePreset("advanced")
	require.Nil(t, err)
	assert.Equal(t, 12, advanced.TotalRounds)

	for _, name := range config.PresetNames() {
		cfg, err := config.ResolvePreset(name)
		require.Nil(t, err)
		require.Nil(t, cfg.Validate())
	}
}

func TestResolvePresetUnknownIsAnError(t *testing.T) {
	_, err := config.ResolvePreset("cardio")
	require.NotNil(t, err)
	assert.Equal(t, errors.ConfigInvalid, err.Code())
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workout.yaml")
	cfg := validConfig()
	require.Nil(t, config.SaveFile(path, cfg))

	loaded, err := config.LoadFile(path)
	require.Nil(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFileFillsWarningDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workout.yaml")
	cfg := validConfig()
	cfg.WarningDuration = 0
	require.Nil(t, config.SaveFile(path, cfg))

	loaded, err := config.LoadFile(path)
	require.Nil(t, err)
	assert.Equal(t, config.DefaultWarningDuration, loaded.WarningDuration)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NotNil(t, err)
	assert.Equal(t, errors.ConfigInvalid, err.Code())
}
