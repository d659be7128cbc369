// Package engine implements the round-based workout state machine.
//
// Warnings are a work-phase edge: the warning fires once per work phase
// when the remaining time drops to the configured threshold, and rest
// and preparation phases never fire it. The threshold is accordingly
// validated against the work duration alone.
package engine

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nm-morais/go-boxtimer/internal/hub"
	"github.com/nm-morais/go-boxtimer/pkg/config"
	"github.com/nm-morais/go-boxtimer/pkg/errors"
	"github.com/nm-morais/go-boxtimer/pkg/event"
	"github.com/nm-morais/go-boxtimer/pkg/logs"
	"github.com/nm-morais/go-boxtimer/pkg/state"
	"github.com/nm-morais/go-boxtimer/pkg/tick"
	log "github.com/sirupsen/logrus"
)

const engineCaller = "TimerEngine"

type commandKind uint8

const (
	cmdStart = commandKind(iota)
	cmdPause
	cmdResume
	cmdStop
	cmdUpdateConfig
)

type command struct {
	kind     commandKind
	patch    config.Patch
	respChan chan errors.Error
}

type stateReq struct {
	respChan chan state.TimerState
}

type configReq struct {
	respChan chan config.TimerConfig
}

// tickMsg carries one delta from the tick source. The epoch guards
// against deltas produced before the most recent start/pause/stop: a
// source goroutine that was already past its stop check delivers into
// the current run, and without the epoch its delta would be attributed
// to the wrong interval.
type tickMsg struct {
	delta time.Duration
	epoch uint64
}

// Engine is the canonical owner of TimerState. A single goroutine
// consumes ticks and commands, so every mutation is serialized; command
// methods are synchronous and must not be called from inside an event
// handler (handlers run on the engine goroutine).
type Engine struct {
	cfg    config.TimerConfig
	st     state.TimerState
	epoch  uint64
	source tick.Source
	hub    *hub.Hub
	logger *log.Logger

	ticks      chan tickMsg
	commands   chan *command
	stateReqs  chan *stateReq
	configReqs chan *configReq
	done       chan struct{}

	destroyOnce sync.Once

	snapshotMutex *sync.RWMutex
	snapshot      state.TimerState
	cfgSnapshot   config.TimerConfig
}

// New builds an engine around the default monotonic tick source.
func New(cfg config.TimerConfig) (*Engine, errors.Error) {
	return NewWithSource(cfg, tick.NewMonotonicSource(tick.DefaultInterval))
}

// NewWithSource builds an engine around the provided tick source. The
// config is validated before any state exists; a bad config produces a
// ConfigInvalid error and no engine.
func NewWithSource(cfg config.TimerConfig, source tick.Source) (*Engine, errors.Error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logs.NewLogger(engineCaller)
	e := &Engine{
		cfg:           cfg,
		source:        source,
		hub:           hub.New(logger),
		logger:        logger,
		ticks:         make(chan tickMsg),
		commands:      make(chan *command),
		stateReqs:     make(chan *stateReq),
		configReqs:    make(chan *configReq),
		done:          make(chan struct{}),
		snapshotMutex: &sync.RWMutex{},
	}
	e.st = initialState(cfg)
	e.snapshot = e.st
	e.cfgSnapshot = cfg
	go e.run()
	return e, nil
}

// NewBoxingTimer resolves a named preset (beginner, intermediate,
// advanced) and returns an engine already configured with it.
func NewBoxingTimer(preset string) (*Engine, errors.Error) {
	cfg, err := config.ResolvePreset(preset)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

func initialState(cfg config.TimerConfig) state.TimerState {
	phase := state.PhaseWork
	if cfg.PrepDuration > 0 {
		phase = state.PhasePreparation
	}
	return state.TimerState{
		Status:        state.StatusIdle,
		Phase:         phase,
		CurrentRound:  1,
		TimeRemaining: cfg.PhaseDuration(phase),
	}
}

// Start begins the workout. Valid from idle; starting a completed engine
// is an implicit reset-then-start. Ignored while already running.
func (e *Engine) Start() errors.Error {
	return e.exec(&command{kind: cmdStart})
}

// Pause freezes the state exactly as it was at the last processed tick.
// Ignored unless running.
func (e *Engine) Pause() errors.Error {
	return e.exec(&command{kind: cmdPause})
}

// Resume continues a paused workout. The tick source baseline is reset,
// so none of the paused interval is attributed to the timer. Ignored
// unless paused.
func (e *Engine) Resume() errors.Error {
	return e.exec(&command{kind: cmdResume})
}

// Stop aborts the workout and returns the engine to the idle
// configuration. Valid from any status and idempotent.
func (e *Engine) Stop() errors.Error {
	return e.exec(&command{kind: cmdStop})
}

// Reset is Stop under the name a completed workout expects.
func (e *Engine) Reset() errors.Error {
	return e.exec(&command{kind: cmdStop})
}

// UpdateConfig merges the patch into the active config. The merged
// config is validated first; on success the engine is implicitly stopped
// and re-initialized, discarding in-flight progress. On failure neither
// config nor state changes.
func (e *Engine) UpdateConfig(patch config.Patch) errors.Error {
	return e.exec(&command{kind: cmdUpdateConfig, patch: patch})
}

// State returns a snapshot of the current state. Must not be called from
// inside an event handler.
func (e *Engine) State() state.TimerState {
	select {
	case <-e.done:
		return e.readSnapshot()
	default:
	}
	req := &stateReq{respChan: make(chan state.TimerState, 1)}
	select {
	case e.stateReqs <- req:
		select {
		case st := <-req.respChan:
			return st
		case <-e.done:
			return e.readSnapshot()
		}
	case <-e.done:
		return e.readSnapshot()
	}
}

// Config returns the active configuration.
func (e *Engine) Config() config.TimerConfig {
	select {
	case <-e.done:
		return e.readCfgSnapshot()
	default:
	}
	req := &configReq{respChan: make(chan config.TimerConfig, 1)}
	select {
	case e.configReqs <- req:
		select {
		case cfg := <-req.respChan:
			return cfg
		case <-e.done:
			return e.readCfgSnapshot()
		}
	case <-e.done:
		return e.readCfgSnapshot()
	}
}

// AddEventListener registers a handler and returns its removal token.
// Handlers run synchronously on the engine goroutine in registration
// order and must not call engine command methods.
func (e *Engine) AddEventListener(handler event.Handler) int {
	return e.hub.Add(handler)
}

// RemoveEventListener unregisters a handler by token. Safe to call from
// inside a handler.
func (e *Engine) RemoveEventListener(token int) bool {
	return e.hub.Remove(token)
}

// Destroy stops the tick source, terminates the engine goroutine and
// releases every listener. Safe from any status, and terminal: no delta
// or command is processed afterwards.
func (e *Engine) Destroy() {
	e.destroyOnce.Do(func() {
		close(e.done)
		e.source.Stop()
		e.hub.Clear()
	})
}

func (e *Engine) exec(c *command) errors.Error {
	c.respChan = make(chan errors.Error, 1)
	select {
	case e.commands <- c:
		select {
		case err := <-c.respChan:
			return err
		case <-e.done:
			return e.destroyedErr(c.kind)
		}
	case <-e.done:
		return e.destroyedErr(c.kind)
	}
}

// Stop and pause stay silent after destruction; they are no-ops on a
// torn-down engine either way.
func (e *Engine) destroyedErr(kind commandKind) errors.Error {
	switch kind {
	case cmdStop, cmdPause:
		return nil
	default:
		return errors.NonFatalError(errors.EngineDestroyed, "engine destroyed", engineCaller)
	}
}

func (e *Engine) readSnapshot() state.TimerState {
	e.snapshotMutex.RLock()
	defer e.snapshotMutex.RUnlock()
	return e.snapshot
}

func (e *Engine) readCfgSnapshot() config.TimerConfig {
	e.snapshotMutex.RLock()
	defer e.snapshotMutex.RUnlock()
	return e.cfgSnapshot
}

func (e *Engine) storeSnapshot() {
	e.snapshotMutex.Lock()
	e.snapshot = e.st
	e.cfgSnapshot = e.cfg
	e.snapshotMutex.Unlock()
}

// run is the single writer of TimerState.
func (e *Engine) run() {
	defer func() {
		if x := recover(); x != nil {
			e.logger.Errorf("panic in run loop: %v, STACK: %s", x, string(debug.Stack()))
		}
	}()

	for {
		select {
		case <-e.done:
			return
		case msg := <-e.ticks:
			e.handleTick(msg)
		case c := <-e.commands:
			c.respChan <- e.handleCommand(c)
		case req := <-e.stateReqs:
			req.respChan <- e.st
		case req := <-e.configReqs:
			req.respChan <- e.cfg
		}
	}
}

func (e *Engine) handleCommand(c *command) errors.Error {
	switch c.kind {
	case cmdStart:
		return e.handleStart()
	case cmdPause:
		e.handlePause()
		return nil
	case cmdResume:
		return e.handleResume()
	case cmdStop:
		e.handleStop()
		return nil
	case cmdUpdateConfig:
		return e.handleUpdateConfig(c.patch)
	default:
		return errors.FatalError(errors.HandlerFailure, fmt.Sprintf("unknown command %d", c.kind), engineCaller)
	}
}

func (e *Engine) handleStart() errors.Error {
	if e.st.Status == state.StatusRunning || e.st.Status == state.StatusPaused {
		return nil
	}

	e.st = initialState(e.cfg)
	e.st.Status = state.StatusRunning
	if err := e.startSource(); err != nil {
		e.st = initialState(e.cfg)
		e.publish(event.Error, event.Payload{Message: err.Reason()})
		return err
	}
	if e.st.Phase == state.PhasePreparation {
		e.publish(event.PreparationStart, event.Payload{NewPhase: state.PhasePreparation})
	} else {
		e.publish(event.PhaseChange, event.Payload{NewPhase: state.PhaseWork})
	}
	e.logger.Infof("workout started: %d rounds of %ds work / %ds rest", e.cfg.TotalRounds, e.cfg.WorkDuration, e.cfg.RestDuration)
	return nil
}

func (e *Engine) handlePause() {
	if e.st.Status != state.StatusRunning {
		return
	}
	e.epoch++
	e.source.Stop()
	e.st.Status = state.StatusPaused
	e.publish(event.Tick, event.Payload{})
	e.logger.Infof("paused at round %d, %s remaining", e.st.CurrentRound, e.st.TimeRemaining)
}

func (e *Engine) handleResume() errors.Error {
	if e.st.Status != state.StatusPaused {
		return nil
	}
	e.st.Status = state.StatusRunning
	if err := e.startSource(); err != nil {
		e.st.Status = state.StatusPaused
		e.publish(event.Error, event.Payload{Message: err.Reason()})
		return err
	}
	e.publish(event.Tick, event.Payload{})
	return nil
}

func (e *Engine) handleStop() {
	if e.st.Status == state.StatusIdle {
		return
	}
	e.epoch++
	e.source.Stop()
	e.st = initialState(e.cfg)
	e.publish(event.Tick, event.Payload{})
}

func (e *Engine) handleUpdateConfig(patch config.Patch) errors.Error {
	merged := e.cfg.Apply(patch)
	if err := merged.Validate(); err != nil {
		return err
	}
	// Implicit stop: resuming mid-phase under new durations has no
	// well-defined semantics, so in-flight progress is discarded.
	e.epoch++
	e.source.Stop()
	e.cfg = merged
	e.st = initialState(e.cfg)
	e.publish(event.Tick, event.Payload{})
	return nil
}

func (e *Engine) startSource() errors.Error {
	e.epoch++
	epoch := e.epoch
	deliver := func(delta time.Duration) {
		select {
		case e.ticks <- tickMsg{delta: delta, epoch: epoch}:
		case <-e.done:
		}
	}
	if err := e.source.Start(deliver); err != nil {
		e.epoch++
		return err
	}
	// Destroy may have stopped the source before this Start; without the
	// re-check the source goroutine would outlive the engine.
	select {
	case <-e.done:
		e.source.Stop()
	default:
	}
	return nil
}

// handleTick advances the state machine by one delivered delta. A delta
// that overshoots the current phase cascades into the following phases so
// that no wall-clock time is lost when the host scheduler stalls across a
// boundary.
func (e *Engine) handleTick(msg tickMsg) {
	if e.st.Status != state.StatusRunning || msg.epoch != e.epoch {
		return
	}
	remaining := msg.delta
	if remaining < 0 {
		remaining = 0
	}
	for remaining > 0 && e.st.Status == state.StatusRunning {
		step := remaining
		if step > e.st.TimeRemaining {
			step = e.st.TimeRemaining
		}
		remaining -= step
		e.st.TimeElapsed += step
		e.st.TimeRemaining -= step
		e.refreshProgress()

		if e.st.Phase == state.PhaseWork && !e.st.WarningTriggered {
			if threshold := e.cfg.WarningThreshold(); threshold > 0 && e.st.TimeRemaining <= threshold {
				e.st.WarningTriggered = true
				e.publish(event.Warning, event.Payload{Round: e.st.CurrentRound})
			}
		}
		if e.st.TimeRemaining == 0 {
			e.advancePhase()
		}
	}
	e.publish(event.Tick, event.Payload{})
}

func (e *Engine) advancePhase() {
	switch e.st.Phase {
	case state.PhasePreparation:
		e.enterPhase(state.PhaseWork)
	case state.PhaseWork:
		e.publish(event.RoundComplete, event.Payload{Round: e.st.CurrentRound})
		if e.st.CurrentRound == e.cfg.TotalRounds {
			e.complete()
		} else {
			e.enterPhase(state.PhaseRest)
		}
	case state.PhaseRest:
		e.st.CurrentRound++
		e.enterPhase(state.PhaseWork)
	}
}

func (e *Engine) enterPhase(phase state.Phase) {
	e.st.Phase = phase
	e.st.TimeElapsed = 0
	e.st.TimeRemaining = e.cfg.PhaseDuration(phase)
	e.st.WarningTriggered = false
	e.refreshProgress()
	e.publish(event.PhaseChange, event.Payload{NewPhase: phase})
}

// complete ends the workout right after the final work phase; the
// trailing rest is skipped.
func (e *Engine) complete() {
	e.epoch++
	e.source.Stop()
	e.st.Status = state.StatusCompleted
	e.st.Progress = 1
	e.st.WorkoutProgress = 1
	e.publish(event.WorkoutComplete, event.Payload{TotalRounds: e.cfg.TotalRounds})
	e.logger.Infof("workout completed: %d rounds", e.cfg.TotalRounds)
}

func (e *Engine) refreshProgress() {
	phaseDur := e.cfg.PhaseDuration(e.st.Phase)
	if phaseDur > 0 {
		e.st.Progress = clampFraction(float64(e.st.TimeElapsed) / float64(phaseDur))
	} else {
		e.st.Progress = 0
	}

	// Preparation is round-0 overhead: it does not advance the round
	// fraction. The final round has no rest, so its fraction runs over
	// the work duration alone.
	if e.st.Phase == state.PhasePreparation {
		e.st.WorkoutProgress = 0
		return
	}
	workDur := e.cfg.PhaseDuration(state.PhaseWork)
	restDur := e.cfg.PhaseDuration(state.PhaseRest)
	roundDur := workDur + restDur
	roundElapsed := e.st.TimeElapsed
	if e.st.Phase == state.PhaseRest {
		roundElapsed += workDur
	}
	if e.st.CurrentRound == e.cfg.TotalRounds {
		roundDur = workDur
	}
	roundFraction := clampFraction(float64(roundElapsed) / float64(roundDur))
	completedRounds := float64(e.st.CurrentRound - 1)
	e.st.WorkoutProgress = clampFraction((completedRounds + roundFraction) / float64(e.cfg.TotalRounds))
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// publish snapshots the state, refreshes the read cache and fans the
// event out. Listener panics surface as error events, except for error
// events themselves, which are only logged.
func (e *Engine) publish(evType event.Type, payload event.Payload) {
	e.storeSnapshot()
	ev := event.Event{Type: evType, State: e.st, Payload: payload}
	failures := e.hub.Dispatch(ev)
	if evType == event.Error {
		return
	}
	for _, failure := range failures {
		e.publish(event.Error, event.Payload{Message: failure.String()})
	}
}
