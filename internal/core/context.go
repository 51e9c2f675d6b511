package core

import (
	"regexp"

	"github.com/hapi-gw/hapi/internal/upstream"
)

// routingKey is the exact-match accelerator key: a stored (path, method)
// literal pair.
type routingKey struct {
	path   string
	method string
}

// Context is the routing table. It owns an ordered list of routes plus two
// indexes rebuilt in full on every add/remove, per invariants C1-C4:
//
//	C1: routeIndex[r.ID] resolves to r's position in routes.
//	C2: routingTable[(p,m)] = i iff routes[i].Paths ∋ p and routes[i].Methods ∋ m.
//	C3: route ids are unique.
//	C4: both indexes are rebuilt before add/remove returns.
//
// Context is owned by exactly one goroutine (the routing-core loop) and is
// never locked; concurrent access is not safe.
type Context struct {
	routes       []Route
	routingTable map[routingKey]int
	routeIndex   map[string]int
}

// NewContext builds an empty Context.
func NewContext() *Context {
	return &Context{
		routingTable: make(map[routingKey]int),
		routeIndex:   make(map[string]int),
	}
}

// AddRoute appends route to the route list and rebuilds both indexes.
// Fails with ErrRouteAlreadyExists, mutating nothing, if route.ID is
// already present.
func (c *Context) AddRoute(route Route) error {
	if _, exists := c.routeIndex[route.ID]; exists {
		return ErrRouteAlreadyExists
	}
	c.routes = append(c.routes, route)
	c.rebuildIndexes()
	return nil
}

// RemoveRoute removes and returns the route with the given id, rebuilding
// both indexes. Fails with ErrRouteNotExists, mutating nothing, if no such
// route exists.
func (c *Context) RemoveRoute(id string) (Route, error) {
	idx, exists := c.routeIndex[id]
	if !exists {
		return Route{}, ErrRouteNotExists
	}
	removed := c.routes[idx]
	c.routes = append(c.routes[:idx], c.routes[idx+1:]...)
	c.rebuildIndexes()
	return removed, nil
}

// GetRouteByID returns the route with the given id.
func (c *Context) GetRouteByID(id string) (Route, error) {
	idx, exists := c.routeIndex[id]
	if !exists {
		return Route{}, ErrRouteNotExists
	}
	return c.routes[idx], nil
}

// GetAllRoutes returns every route, in declaration order.
func (c *Context) GetAllRoutes() []Route {
	out := make([]Route, len(c.routes))
	copy(out, c.routes)
	return out
}

// GetAllUpstreams returns the deduplicated set of upstream addresses across
// every route.
func (c *Context) GetAllUpstreams() []upstream.Upstream {
	seen := make(map[upstream.Address]bool)
	var out []upstream.Upstream
	for i := range c.routes {
		for _, u := range c.routes[i].GetUpstreams() {
			if seen[u.Address] {
				continue
			}
			seen[u.Address] = true
			out = append(out, u)
		}
	}
	return out
}

// EnableUpstreamForAllRoutes flips enabled=true on addr in every route.
func (c *Context) EnableUpstreamForAllRoutes(addr upstream.Address) {
	for i := range c.routes {
		c.routes[i].Enable(addr)
	}
}

// DisableUpstreamForAllRoutes flips enabled=false on addr in every route.
func (c *Context) DisableUpstreamForAllRoutes(addr upstream.Address) {
	for i := range c.routes {
		c.routes[i].Disable(addr)
	}
}

// UpstreamLookup resolves an incoming (path, method) pair: first by exact
// match in the routing table, then by regex fallback in declaration order
// (see DESIGN.md's Open Question decision). Returns ok=false if no route
// matches, or if the matching route's strategy yields no enabled upstream
// (lookup never falls through to another route in that case).
func (c *Context) UpstreamLookup(path, method string) (upstream.Upstream, bool, error) {
	if idx, ok := c.routingTable[routingKey{path: path, method: method}]; ok {
		u, found := c.routes[idx].Next()
		return u, found, nil
	}

	idx, err := c.findByRegexFallback(path, method)
	if err != nil {
		return upstream.Upstream{}, false, err
	}
	if idx < 0 {
		return upstream.Upstream{}, false, nil
	}
	u, found := c.routes[idx].Next()
	return u, found, nil
}

// findByRegexFallback iterates routes in declaration order; for the first
// route with some (path pattern, method pattern) pair that both match, via
// ^pattern$ anchoring, returns its index. Returns -1 if none match.
func (c *Context) findByRegexFallback(path, method string) (int, error) {
	for i := range c.routes {
		matched, err := routeMatches(&c.routes[i], path, method)
		if err != nil {
			return -1, err
		}
		if matched {
			return i, nil
		}
	}
	return -1, nil
}

func routeMatches(r *Route, path, method string) (bool, error) {
	for _, p := range r.Paths {
		pathRe, err := compileAnchored(p)
		if err != nil {
			return false, err
		}
		if !pathRe.MatchString(path) {
			continue
		}
		for _, m := range r.Methods {
			methodRe, err := compileAnchored(m)
			if err != nil {
				return false, err
			}
			if methodRe.MatchString(method) {
				return true, nil
			}
		}
	}
	return false, nil
}

func compileAnchored(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^" + pattern + "$")
	if err != nil {
		return nil, &RegexpError{Pattern: pattern, Err: err}
	}
	return re, nil
}

// rebuildIndexes recomputes routeIndex and routingTable from scratch. Full
// rebuild on every mutation trivially guarantees C1/C2 at expected route
// counts (tens to low hundreds); no incremental maintenance.
func (c *Context) rebuildIndexes() {
	c.routeIndex = make(map[string]int, len(c.routes))
	c.routingTable = make(map[routingKey]int)

	for i := range c.routes {
		c.routeIndex[c.routes[i].ID] = i
		for _, p := range c.routes[i].Paths {
			for _, m := range c.routes[i].Methods {
				c.routingTable[routingKey{path: p, method: m}] = i
			}
		}
	}
}
