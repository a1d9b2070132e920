package pipeline

import "fmt"

// State is a stage of the query pipeline.
type State string

// Pipeline states. Done and Failed are terminal.
const (
	Idle       State = "idle"
	Embedding  State = "embedding"
	Retrieving State = "retrieving"
	Generating State = "generating"
	Done       State = "done"
	Failed     State = "failed"
)

var next = map[State]State{
	Idle:       Embedding,
	Embedding:  Retrieving,
	Retrieving: Generating,
	Generating: Done,
}

// IsValid checks if the state is one of the known values.
func (s State) IsValid() bool {
	switch s {
	case Idle, Embedding, Retrieving, Generating, Done, Failed:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool { return s == Done || s == Failed }

// CanTransition reports whether from -> to is allowed.
// The pipeline is linear; Failed is reachable from any non-terminal state.
func CanTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == Failed {
		return true
	}
	return next[from] == to
}

// Machine tracks one request's progress through the pipeline.
// It is not safe for concurrent use; each request owns its own.
type Machine struct {
	state State
}

// NewMachine returns a machine in Idle.
func NewMachine() *Machine { return &Machine{state: Idle} }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Advance moves to the next stage.
func (m *Machine) Advance() (State, error) {
	to, ok := next[m.state]
	if !ok {
		return m.state, fmt.Errorf("no transition from %s", m.state)
	}
	m.state = to
	return to, nil
}

// Fail moves to Failed. Failing a terminal machine is an error.
func (m *Machine) Fail() error {
	if m.state.IsTerminal() {
		return fmt.Errorf("cannot fail from terminal state %s", m.state)
	}
	m.state = Failed
	return nil
}
