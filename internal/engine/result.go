package engine

import (
	"github.com/newthinker/orb/internal/cost"
	"github.com/newthinker/orb/internal/execution"
	"github.com/newthinker/orb/internal/orb"
	"github.com/newthinker/orb/internal/outcome"
	"github.com/newthinker/orb/internal/session"
)

// State is a trade lifecycle state.
type State string

const (
	StatePending  State = "PENDING"
	StateNoRange  State = "NO_RANGE"
	StateNoEntry  State = "NO_ENTRY"
	StateEntered  State = "ENTERED"
	StateWin      State = "WIN"
	StateLoss     State = "LOSS"
	StateOpen     State = "OPEN"
	StateViable   State = "VIABLE_RESULT"
	StateRejected State = "REJECTED_COST_GATE"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	switch s {
	case StateNoRange, StateNoEntry, StateOpen, StateViable, StateRejected:
		return true
	}
	return false
}

// Trade is what every result knows about the evaluation that produced it.
type Trade struct {
	Symbol string
	Window session.Window
	Params Params
	// Path lists the states visited, PENDING first and the terminal state last.
	Path []State
}

// Result is one of NoRange, NoEntry, Open, Viable or Rejected.
type Result interface {
	State() State
	Info() Trade
	result()
}

// NoRange means the opening-range window held no usable bars.
type NoRange struct {
	Trade
	Reason error
}

// NoEntry means the range formed but the policy never filled.
type NoEntry struct {
	Trade
	Range orb.Range
}

// Entered is the shared part of every filled trade.
type Entered struct {
	Range   orb.Range
	Fill    execution.Fill
	Levels  outcome.Levels
	Outcome outcome.Outcome
}

// Open means neither stop nor target was touched before the scan ended.
type Open struct {
	Trade
	Entered
}

// Viable is a resolved trade that passed the cost gate.
type Viable struct {
	Trade
	Entered
	Costed *cost.CostedResult
}

// Rejected is a resolved trade whose friction exceeded the gate. It must not
// be aggregated.
type Rejected struct {
	Trade
	Entered
	Costed *cost.CostedResult
	Gate   *cost.GateError
}

func (NoRange) State() State  { return StateNoRange }
func (NoEntry) State() State  { return StateNoEntry }
func (Open) State() State     { return StateOpen }
func (Viable) State() State   { return StateViable }
func (Rejected) State() State { return StateRejected }

func (r NoRange) Info() Trade  { return r.Trade }
func (r NoEntry) Info() Trade  { return r.Trade }
func (r Open) Info() Trade     { return r.Trade }
func (r Viable) Info() Trade   { return r.Trade }
func (r Rejected) Info() Trade { return r.Trade }

func (NoRange) result()  {}
func (NoEntry) result()  {}
func (Open) result()     {}
func (Viable) result()   {}
func (Rejected) result() {}

// Filled returns the entry details of r, if it has any.
func Filled(r Result) (Entered, bool) {
	switch v := r.(type) {
	case Open:
		return v.Entered, true
	case Viable:
		return v.Entered, true
	case Rejected:
		return v.Entered, true
	}
	return Entered{}, false
}
