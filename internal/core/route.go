// Package core implements the routing table: the Context that resolves an
// incoming (path, method) pair to an upstream, and the Route value type it
// holds.
package core

import "github.com/hapi-gw/hapi/internal/upstream"

// Route is a value object identified by id: a set of (method, path) pairs
// mapped onto a strategy-selected upstream. The core never mutates a
// route's identity (id, name, methods, paths); all mutable state lives in
// the strategy.
type Route struct {
	ID      string
	Name    string
	Methods []string
	Paths   []string

	strategy upstream.Strategy
}

// NewRoute builds a route around an already-constructed strategy.
func NewRoute(id, name string, methods, paths []string, strategy upstream.Strategy) Route {
	return Route{ID: id, Name: name, Methods: methods, Paths: paths, strategy: strategy}
}

// Next delegates to the route's strategy.
func (r *Route) Next() (upstream.Upstream, bool) { return r.strategy.Next() }

// GetUpstreams delegates to the route's strategy.
func (r *Route) GetUpstreams() []upstream.Upstream { return r.strategy.GetUpstreams() }

// Enable delegates to the route's strategy.
func (r *Route) Enable(addr upstream.Address) { r.strategy.Enable(addr) }

// Disable delegates to the route's strategy.
func (r *Route) Disable(addr upstream.Address) { r.strategy.Disable(addr) }

// StrategyKind reports which load-balancing policy this route uses.
func (r *Route) StrategyKind() upstream.Kind { return r.strategy.Kind() }

// HasMethod reports whether m is one of the route's literal/regex methods.
func (r *Route) HasMethod(m string) bool { return contains(r.Methods, m) }

// HasPath reports whether p is one of the route's literal/regex paths.
func (r *Route) HasPath(p string) bool { return contains(r.Paths, p) }

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
