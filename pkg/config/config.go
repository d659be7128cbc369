package config

import (
	"fmt"
	"time"

	"github.com/nm-morais/go-boxtimer/pkg/errors"
	"github.com/nm-morais/go-boxtimer/pkg/state"
)

const configCaller = "TimerConfig"

const (
	// MaxRounds is the highest round count a workout may be configured with.
	MaxRounds = 20
	// DefaultWarningDuration is applied when a config enables warnings
	// without choosing a threshold.
	DefaultWarningDuration = 10
)

// TimerConfig describes one workout. All durations are in seconds.
// Configs are immutable once handed to an engine; replacing one resets
// in-flight state.
type TimerConfig struct {
	WorkDuration    int  `yaml:"work_duration_seconds"`
	RestDuration    int  `yaml:"rest_duration_seconds"`
	PrepDuration    int  `yaml:"prep_duration_seconds"`
	TotalRounds     int  `yaml:"total_rounds"`
	EnableWarning   bool `yaml:"enable_warning"`
	WarningDuration int  `yaml:"warning_duration_seconds"`
}

// Patch holds partial overrides for an existing config. Nil fields keep
// the current value.
type Patch struct {
	WorkDuration    *int  `yaml:"work_duration_seconds"`
	RestDuration    *int  `yaml:"rest_duration_seconds"`
	PrepDuration    *int  `yaml:"prep_duration_seconds"`
	TotalRounds     *int  `yaml:"total_rounds"`
	EnableWarning   *bool `yaml:"enable_warning"`
	WarningDuration *int  `yaml:"warning_duration_seconds"`
}

// Apply merges the patch over c and returns the result. The merged config
// is not validated here; callers validate before using it.
func (c TimerConfig) Apply(p Patch) TimerConfig {
	merged := c
	if p.WorkDuration != nil {
		merged.WorkDuration = *p.WorkDuration
	}
	if p.RestDuration != nil {
		merged.RestDuration = *p.RestDuration
	}
	if p.PrepDuration != nil {
		merged.PrepDuration = *p.PrepDuration
	}
	if p.TotalRounds != nil {
		merged.TotalRounds = *p.TotalRounds
	}
	if p.EnableWarning != nil {
		merged.EnableWarning = *p.EnableWarning
	}
	if p.WarningDuration != nil {
		merged.WarningDuration = *p.WarningDuration
	}
	return merged
}

// Validate checks every constraint the engine relies on. It returns a
// ConfigInvalid error naming the first offending field.
//
// The warning is a work-phase edge, so enabling it requires
// 0 < WarningDuration < WorkDuration; rest durations are unconstrained
// by the threshold.
func (c TimerConfig) Validate() errors.Error {
	if c.WorkDuration <= 0 {
		return invalid(fmt.Sprintf("workDuration must be > 0, got %d", c.WorkDuration))
	}
	if c.RestDuration <= 0 {
		return invalid(fmt.Sprintf("restDuration must be > 0, got %d", c.RestDuration))
	}
	if c.PrepDuration < 0 {
		return invalid(fmt.Sprintf("prepDuration must be >= 0, got %d", c.PrepDuration))
	}
	if c.TotalRounds < 1 || c.TotalRounds > MaxRounds {
		return invalid(fmt.Sprintf("totalRounds must be between 1 and %d, got %d", MaxRounds, c.TotalRounds))
	}
	if c.EnableWarning {
		if c.WarningDuration <= 0 {
			return invalid(fmt.Sprintf("warningDuration must be > 0, got %d", c.WarningDuration))
		}
		if c.WarningDuration >= c.WorkDuration {
			return invalid(fmt.Sprintf(
				"warningDuration (%d) must be shorter than workDuration (%d)",
				c.WarningDuration, c.WorkDuration,
			))
		}
	}
	return nil
}

// PhaseDuration returns the configured length of the given phase.
func (c TimerConfig) PhaseDuration(p state.Phase) time.Duration {
	switch p {
	case state.PhasePreparation:
		return time.Duration(c.PrepDuration) * time.Second
	case state.PhaseWork:
		return time.Duration(c.WorkDuration) * time.Second
	case state.PhaseRest:
		return time.Duration(c.RestDuration) * time.Second
	}
	return 0
}

// WarningThreshold returns the remaining-time threshold below which the
// warning edge fires, or 0 when warnings are disabled.
func (c TimerConfig) WarningThreshold() time.Duration {
	if !c.EnableWarning {
		return 0
	}
	return time.Duration(c.WarningDuration) * time.Second
}

func invalid(reason string) errors.Error {
	return errors.NonFatalError(errors.ConfigInvalid, reason, configCaller)
}
