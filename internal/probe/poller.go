// Package probe implements the debounced up/down state machine that turns a
// stream of TCP-connect successes and failures into enable/disable
// decisions for an upstream.
package probe

// State is the Poller's current up/down status.
type State int

const (
	Up State = iota
	Down
)

func (s State) String() string {
	if s == Down {
		return "down"
	}
	return "up"
}

// Poller is a debounced two-state machine. It is not thread-safe; it is
// owned by a single probe task.
type Poller struct {
	errorThreshold   int
	successThreshold int

	curErr int
	curOK  int
	state  State
}

// New builds a Poller starting in the Up state with the given consecutive
// failure/success thresholds required to flip state.
func New(errorThreshold, successThreshold int) *Poller {
	return &Poller{
		errorThreshold:   errorThreshold,
		successThreshold: successThreshold,
		state:            Up,
	}
}

// State reports the Poller's current status.
func (p *Poller) State() State { return p.state }

// TickFailure feeds one failed check to the Poller. Returns true iff this
// call just transitioned it from Up to Down. While Down, a failure causes
// no transition but resets curOK, so recovery needs consecutive successes.
func (p *Poller) TickFailure() bool {
	if p.state != Up {
		p.curOK = 0
		return false
	}
	p.curErr++
	if p.curErr >= p.errorThreshold {
		p.state = Down
		p.curErr = 0
		return true
	}
	return false
}

// TickSuccess feeds one successful check to the Poller. Returns true iff
// this call just transitioned it from Down to Up.
//
// While Up, a success resets curErr to 0 rather than being ignored: a
// naive implementation that never resets on an isolated success lets
// sparse failures, spread arbitrarily far apart, eventually accumulate to
// the threshold. Resetting on any success while Up avoids that.
func (p *Poller) TickSuccess() bool {
	if p.state == Up {
		p.curErr = 0
		return false
	}
	p.curOK++
	if p.curOK >= p.successThreshold {
		p.state = Up
		p.curOK = 0
		return true
	}
	return false
}
