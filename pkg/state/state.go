package state

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of the timer engine.
type Status uint8

const (
	StatusIdle Status = iota
	StatusRunning
	StatusPaused
	StatusCompleted
)

var statusNames = map[Status]string{
	StatusIdle:      "idle",
	StatusRunning:   "running",
	StatusPaused:    "paused",
	StatusCompleted: "completed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Status) UnmarshalJSON(data []byte) error {
	name := string(data)
	for v, n := range statusNames {
		if `"`+n+`"` == name {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown status: %s", name)
}

// Phase is a sub-interval within a round.
type Phase uint8

const (
	PhasePreparation Phase = iota
	PhaseWork
	PhaseRest
)

var phaseNames = map[Phase]string{
	PhasePreparation: "preparation",
	PhaseWork:        "work",
	PhaseRest:        "rest",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	name := string(data)
	for v, n := range phaseNames {
		if `"`+n+`"` == name {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown phase: %s", name)
}

// TimerState is a snapshot of the engine state. The engine is the only
// writer; everything handed out is a value copy.
type TimerState struct {
	Status           Status        `json:"status"`
	Phase            Phase         `json:"phase"`
	CurrentRound     int           `json:"currentRound"`
	TimeRemaining    time.Duration `json:"timeRemaining"`
	TimeElapsed      time.Duration `json:"timeElapsed"`
	Progress         float64       `json:"progress"`
	WorkoutProgress  float64       `json:"workoutProgress"`
	WarningTriggered bool          `json:"warningTriggered"`
}
