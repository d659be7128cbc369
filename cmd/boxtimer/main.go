package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nm-morais/go-boxtimer/pkg/config"
	"github.com/nm-morais/go-boxtimer/pkg/engine"
	"github.com/nm-morais/go-boxtimer/pkg/errors"
	"github.com/nm-morais/go-boxtimer/pkg/event"
	"github.com/nm-morais/go-boxtimer/pkg/remote"
	"github.com/nm-morais/go-boxtimer/pkg/tick"
)

func main() {
	var (
		preset     string
		configFile string
		work       int
		rest       int
		prep       int
		rounds     int
		warning    int
		listenAddr string
		interval   time.Duration
	)
	flag.StringVar(&preset, "preset", "", fmt.Sprintf("named preset %v", config.PresetNames()))
	flag.StringVar(&configFile, "config", "", "YAML workout config file")
	flag.IntVar(&work, "work", 180, "work phase duration (seconds)")
	flag.IntVar(&rest, "rest", 60, "rest phase duration (seconds)")
	flag.IntVar(&prep, "prep", 10, "preparation duration (seconds, 0 skips)")
	flag.IntVar(&rounds, "rounds", 3, "number of rounds")
	flag.IntVar(&warning, "warning", config.DefaultWarningDuration, "warning threshold (seconds, 0 disables)")
	flag.StringVar(&listenAddr, "listen", "", "broadcast timer events on this TCP address")
	flag.DurationVar(&interval, "interval", tick.DefaultInterval, "nominal tick interval")
	flag.Parse()

	cfg, err := resolveConfig(preset, configFile, config.TimerConfig{
		WorkDuration:    work,
		RestDuration:    rest,
		PrepDuration:    prep,
		TotalRounds:     rounds,
		EnableWarning:   warning > 0,
		WarningDuration: warning,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid workout config: %s\n", err.Reason())
		os.Exit(1)
	}

	eng, err := engine.NewWithSource(cfg, tick.NewMonotonicSource(interval))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid workout config: %s\n", err.Reason())
		os.Exit(1)
	}
	defer eng.Destroy()

	if listenAddr != "" {
		server, err := remote.NewServer(eng, remote.DefaultPoolSize)
		if err == nil {
			err = server.Listen(listenAddr)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "event stream server: %s\n", err.Reason())
			os.Exit(1)
		}
		defer server.Close()
	}

	program := tea.NewProgram(newModel(eng))
	token := eng.AddEventListener(func(ev event.Event) {
		program.Send(engineEventMsg(ev))
	})
	defer eng.RemoveEventListener(token)

	if _, runErr := program.Run(); runErr != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", runErr)
		os.Exit(1)
	}
}

func resolveConfig(preset, configFile string, custom config.TimerConfig) (config.TimerConfig, errors.Error) {
	switch {
	case preset != "":
		cfg, err := config.ResolvePreset(preset)
		if err != nil {
			return config.TimerConfig{}, err
		}
		return cfg, nil
	case configFile != "":
		cfg, err := config.LoadFile(configFile)
		if err != nil {
			return config.TimerConfig{}, err
		}
		return cfg, nil
	default:
		if err := custom.Validate(); err != nil {
			return config.TimerConfig{}, err
		}
		return custom, nil
	}
}
