package upstream

// Kind distinguishes the load-balancing strategies a Route can use. This is
// Go's analog of the original's trait-object strategy: rather than an
// interface with one implementation per algorithm, Strategy is a small
// tagged variant, since the state and behavior differences between
// AlwaysFirst and RoundRobin are a single cursor field and a scan order.
type Kind int

const (
	AlwaysFirst Kind = iota
	RoundRobin
)

func (k Kind) String() string {
	if k == RoundRobin {
		return "RoundRobin"
	}
	return "AlwaysFirst"
}

// Strategy owns a route's upstream list and picks one of them per request.
// It is owned by exactly one Route, which is in turn owned by exactly one
// Context goroutine, so its methods mutate state in place with no
// synchronization.
type Strategy struct {
	kind      Kind
	upstreams []Upstream

	// nextIndex is round-robin's cursor into upstreams (including disabled
	// entries). Unused by AlwaysFirst.
	nextIndex int
}

// NewAlwaysFirst builds a strategy that always picks the first enabled
// upstream. upstreams must be non-empty.
func NewAlwaysFirst(upstreams []Upstream) Strategy {
	return Strategy{kind: AlwaysFirst, upstreams: upstreams}
}

// NewRoundRobin builds a strategy that cycles through enabled upstreams.
// upstreams must be non-empty.
func NewRoundRobin(upstreams []Upstream) Strategy {
	return Strategy{kind: RoundRobin, upstreams: upstreams}
}

// Kind reports which variant this strategy is.
func (s *Strategy) Kind() Kind { return s.kind }

// GetUpstreams returns the full upstream list, including disabled entries.
func (s *Strategy) GetUpstreams() []Upstream {
	return s.upstreams
}

// Next returns one enabled upstream, or false if every upstream is disabled.
//
// AlwaysFirst scans the list in declaration order and returns the first
// enabled entry. RoundRobin starts from nextIndex, scans at most
// len(upstreams) positions wrapping around, and on success advances
// nextIndex to just past the chosen index.
func (s *Strategy) Next() (Upstream, bool) {
	n := len(s.upstreams)
	if n == 0 {
		return Upstream{}, false
	}

	start := 0
	if s.kind == RoundRobin {
		start = s.nextIndex % n
	}

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if s.upstreams[idx].Enabled {
			if s.kind == RoundRobin {
				s.nextIndex = (idx + 1) % n
			}
			return s.upstreams[idx], true
		}
	}
	return Upstream{}, false
}

// Enable flips enabled=true on every upstream in the list whose address
// equals addr.
func (s *Strategy) Enable(addr Address) {
	for i := range s.upstreams {
		if s.upstreams[i].Address.Equal(addr) {
			s.upstreams[i].Enable()
		}
	}
}

// Disable flips enabled=false on every upstream in the list whose address
// equals addr.
func (s *Strategy) Disable(addr Address) {
	for i := range s.upstreams {
		if s.upstreams[i].Address.Equal(addr) {
			s.upstreams[i].Disable()
		}
	}
}
