package config

import (
	"fmt"
	"os"

	"github.com/nm-morais/go-boxtimer/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a workout config from a YAML file and validates it.
func LoadFile(path string) (TimerConfig, errors.Error) {
	rawData, err := os.ReadFile(path)
	if err != nil {
		return TimerConfig{}, invalid(fmt.Sprintf("read config file: %v", err))
	}

	var cfg TimerConfig
	if err := yaml.Unmarshal(rawData, &cfg); err != nil {
		return TimerConfig{}, invalid(fmt.Sprintf("parse config yaml: %v", err))
	}
	if cfg.EnableWarning && cfg.WarningDuration == 0 {
		cfg.WarningDuration = DefaultWarningDuration
	}
	if vErr := cfg.Validate(); vErr != nil {
		return TimerConfig{}, vErr
	}
	return cfg, nil
}

// SaveFile writes the config to a YAML file.
func SaveFile(path string, cfg TimerConfig) errors.Error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return invalid(fmt.Sprintf("encode config yaml: %v", err))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return invalid(fmt.Sprintf("write config file: %v", err))
	}
	return nil
}
