package event

import (
	"fmt"

	"github.com/nm-morais/go-boxtimer/pkg/state"
)

// Type discriminates timer events. Tick fires on every processed tick
// with a fresh snapshot; the remaining types fire only on their edges.
type Type uint8

const (
	Tick Type = iota
	PreparationStart
	PhaseChange
	Warning
	RoundComplete
	WorkoutComplete
	Error
)

var typeNames = map[Type]string{
	Tick:             "tick",
	PreparationStart: "preparationStart",
	PhaseChange:      "phaseChange",
	Warning:          "warning",
	RoundComplete:    "roundComplete",
	WorkoutComplete:  "workoutComplete",
	Error:            "error",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", uint8(t))
}

func (t Type) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Type) UnmarshalJSON(data []byte) error {
	name := string(data)
	for v, n := range typeNames {
		if `"`+n+`"` == name {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("unknown event type: %s", name)
}

// Payload carries the type-specific fields of an event. Unused fields
// are left at their zero value.
type Payload struct {
	NewPhase    state.Phase `json:"newPhase,omitempty"`
	Round       int         `json:"round,omitempty"`
	TotalRounds int         `json:"totalRounds,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// Event is one externally observable transition. The embedded state is a
// snapshot taken after the mutation that produced the event; it is never
// mutated afterwards.
type Event struct {
	Type    Type             `json:"type"`
	State   state.TimerState `json:"state"`
	Payload Payload          `json:"payload"`
}

// Handler consumes events. Handlers run synchronously on the engine
// goroutine, in registration order.
type Handler func(Event)
