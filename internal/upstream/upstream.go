package upstream

// Upstream is a single backend server plus its enabled/disabled state.
// Disabled upstreams are skipped by strategy selection and the data-plane
// processor, but stay in the route's upstream list so a probe transition can
// re-enable them without reconstructing the route.
type Upstream struct {
	Address Address
	Enabled bool
}

// New builds an upstream in the enabled state.
func New(addr Address) Upstream {
	return Upstream{Address: addr, Enabled: true}
}

func (u *Upstream) Enable()  { u.Enabled = true }
func (u *Upstream) Disable() { u.Enabled = false }
