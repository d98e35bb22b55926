// Package stage implements the stage registry, lifecycle state machine,
// schema validation, and composite (root/serial/parallel) stages that make
// up C4: the execution tree that drives the email store through a
// configurable pipeline.
package stage

import (
	"sync"

	"github.com/sirupsen/logrus"

	"inlook-corpus/internal/metrics"
	"inlook-corpus/pkg/errors"
)

// State is one of the six lifecycle states a stage can occupy.
type State string

const (
	StateUnloaded State = "UNLOADED"
	StateLoaded   State = "LOADED"
	StateReady    State = "READY"
	StateRunning  State = "RUNNING"
	StateComplete State = "COMPLETE"
	StateFailed   State = "FAILED"
)

// defaultTransitions is the base transition table; FAILED is reachable
// from every state without being listed here (see Transition) and every
// state accepts a self-transition for the same reason.
var defaultTransitions = map[State]map[State]bool{
	StateUnloaded: {StateLoaded: true},
	StateLoaded:   {StateReady: true},
	StateReady:    {StateRunning: true},
	StateRunning:  {StateComplete: true},
	StateFailed:   {StateUnloaded: true},
}

// StateMachine enforces the lifecycle transition table for one stage
// instance. It is safe for concurrent use.
type StateMachine struct {
	mu      sync.Mutex
	current State
	extra   map[State]map[State]bool
	name    string
	log     *logrus.Entry
}

// NewStateMachine returns a state machine starting in UNLOADED. name
// identifies the owning stage in transition-rejection log entries.
func NewStateMachine(name string, log *logrus.Entry) *StateMachine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &StateMachine{current: StateUnloaded, name: name, log: log}
}

// State returns the current state.
func (sm *StateMachine) State() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

// AllowTransition registers an additional transition beyond the default
// table, for composite stages or adapters with extra states of their own.
func (sm *StateMachine) AllowTransition(from, to State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.extra == nil {
		sm.extra = make(map[State]map[State]bool)
	}
	if sm.extra[from] == nil {
		sm.extra[from] = make(map[State]bool)
	}
	sm.extra[from][to] = true
}

// Transition attempts to move the state machine from its current state to
// to. caller and line identify the call site for the audit log. A
// self-transition always succeeds. FAILED is reachable from any state.
// Any other unlisted transition is rejected, logged at error level, and
// leaves the state unchanged.
func (sm *StateMachine) Transition(to State, caller string, line int) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from := sm.current
	if from == to {
		return nil
	}
	if to == StateFailed {
		sm.current = StateFailed
		metrics.RecordTransition(sm.name, string(from), string(to), true)
		return nil
	}

	allowed := defaultTransitions[from][to]
	if !allowed && sm.extra[from][to] {
		allowed = true
	}
	if !allowed {
		sm.log.WithFields(logrus.Fields{
			"stage":  sm.name,
			"caller": caller,
			"line":   line,
			"from":   from,
			"to":     to,
		}).Error("rejected invalid stage state transition")
		metrics.RecordTransition(sm.name, string(from), string(to), false)
		return errors.InvalidTransition(caller, line, string(from), string(to))
	}

	sm.current = to
	metrics.RecordTransition(sm.name, string(from), string(to), true)
	return nil
}
