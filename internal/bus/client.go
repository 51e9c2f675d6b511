package bus

import (
	"github.com/google/uuid"
	"github.com/hapi-gw/hapi/internal/core"
	"github.com/hapi-gw/hapi/internal/upstream"
)

// Client implements the issuer protocol of §4.7: subscribe to events
// before sending a command, then wait for the first event correlated to
// that command's id, dropping everything else. This is the shape every
// caller that needs a reply uses — the management API, the data-plane
// processor, and the probe supervisor's enable/disable confirmations all
// go through a Client rather than touching the Bus directly.
type Client struct {
	bus *Bus
}

// NewClient wraps bus with the issuer protocol.
func NewClient(bus *Bus) *Client {
	return &Client{bus: bus}
}

func newID() string { return uuid.NewString() }

// LookupUpstream resolves (path, method) to an upstream address.
func (c *Client) LookupUpstream(client, path, method string) (upstream.Address, bool, error) {
	id := newID()
	sub := c.bus.SubscribeEvents()
	defer sub.Unsubscribe()

	c.bus.SendCommand(LookupUpstream{Meta: Meta{ID: id}, Client: client, Path: path, Method: method})

	for {
		evt, err := sub.Recv()
		if err != nil {
			return upstream.Address{}, false, err
		}
		if evt.CorrelationID() != id {
			continue
		}
		switch e := evt.(type) {
		case UpstreamWasFound:
			return e.Address, true, nil
		case UpstreamWasNotFound:
			return upstream.Address{}, false, nil
		}
	}
}

// AddRoute issues AddRoute and awaits RouteWasAdded / RouteWasNotAdded.
func (c *Client) AddRoute(route core.Route) error {
	id := newID()
	sub := c.bus.SubscribeEvents()
	defer sub.Unsubscribe()

	c.bus.SendCommand(AddRoute{Meta: Meta{ID: id}, Route: route})

	for {
		evt, err := sub.Recv()
		if err != nil {
			return err
		}
		if evt.CorrelationID() != id {
			continue
		}
		switch e := evt.(type) {
		case RouteWasAdded:
			return nil
		case RouteWasNotAdded:
			return e.Err
		}
	}
}

// RemoveRoute issues RemoveRoute and awaits RouteWasRemoved / RouteWasNotRemoved.
func (c *Client) RemoveRoute(routeID string) (core.Route, error) {
	id := newID()
	sub := c.bus.SubscribeEvents()
	defer sub.Unsubscribe()

	c.bus.SendCommand(RemoveRoute{Meta: Meta{ID: id}, RouteID: routeID})

	for {
		evt, err := sub.Recv()
		if err != nil {
			return core.Route{}, err
		}
		if evt.CorrelationID() != id {
			continue
		}
		switch e := evt.(type) {
		case RouteWasRemoved:
			return e.Route, nil
		case RouteWasNotRemoved:
			return core.Route{}, e.Err
		}
	}
}

// LookupRoute issues LookupRoute and awaits RouteWasFound / RouteWasNotFound.
func (c *Client) LookupRoute(routeID string) (core.Route, bool, error) {
	id := newID()
	sub := c.bus.SubscribeEvents()
	defer sub.Unsubscribe()

	c.bus.SendCommand(LookupRoute{Meta: Meta{ID: id}, RouteID: routeID})

	for {
		evt, err := sub.Recv()
		if err != nil {
			return core.Route{}, false, err
		}
		if evt.CorrelationID() != id {
			continue
		}
		switch e := evt.(type) {
		case RouteWasFound:
			return e.Route, true, nil
		case RouteWasNotFound:
			return core.Route{}, false, nil
		}
	}
}

// LookupAllRoutes issues LookupAllRoutes and awaits RoutesWereFound.
func (c *Client) LookupAllRoutes() ([]core.Route, error) {
	id := newID()
	sub := c.bus.SubscribeEvents()
	defer sub.Unsubscribe()

	c.bus.SendCommand(LookupAllRoutes{Meta: Meta{ID: id}})

	for {
		evt, err := sub.Recv()
		if err != nil {
			return nil, err
		}
		if evt.CorrelationID() != id {
			continue
		}
		if e, ok := evt.(RoutesWereFound); ok {
			return e.Routes, nil
		}
	}
}

// LookupAllUpstreams issues LookupAllUpstreams and awaits UpstreamsWereFound.
func (c *Client) LookupAllUpstreams() ([]upstream.Upstream, error) {
	id := newID()
	sub := c.bus.SubscribeEvents()
	defer sub.Unsubscribe()

	c.bus.SendCommand(LookupAllUpstreams{Meta: Meta{ID: id}})

	for {
		evt, err := sub.Recv()
		if err != nil {
			return nil, err
		}
		if evt.CorrelationID() != id {
			continue
		}
		if e, ok := evt.(UpstreamsWereFound); ok {
			return e.Upstreams, nil
		}
	}
}

// LookupStats issues LookupStats and awaits StatsWereFound.
func (c *Client) LookupStats() ([]StatRow, error) {
	id := newID()
	sub := c.bus.SubscribeEvents()
	defer sub.Unsubscribe()

	c.bus.SendCommand(LookupStats{Meta: Meta{ID: id}})

	for {
		evt, err := sub.Recv()
		if err != nil {
			return nil, err
		}
		if evt.CorrelationID() != id {
			continue
		}
		if e, ok := evt.(StatsWereFound); ok {
			return e.Rows, nil
		}
	}
}

// EnableUpstream issues EnableUpstream and awaits UpstreamWasEnabled.
func (c *Client) EnableUpstream(addr upstream.Address) error {
	id := newID()
	sub := c.bus.SubscribeEvents()
	defer sub.Unsubscribe()

	c.bus.SendCommand(EnableUpstream{Meta: Meta{ID: id}, Address: addr})

	for {
		evt, err := sub.Recv()
		if err != nil {
			return err
		}
		if evt.CorrelationID() != id {
			continue
		}
		if _, ok := evt.(UpstreamWasEnabled); ok {
			return nil
		}
	}
}

// DisableUpstream issues DisableUpstream and awaits UpstreamWasDisabled.
func (c *Client) DisableUpstream(addr upstream.Address) error {
	id := newID()
	sub := c.bus.SubscribeEvents()
	defer sub.Unsubscribe()

	c.bus.SendCommand(DisableUpstream{Meta: Meta{ID: id}, Address: addr})

	for {
		evt, err := sub.Recv()
		if err != nil {
			return err
		}
		if evt.CorrelationID() != id {
			continue
		}
		if _, ok := evt.(UpstreamWasDisabled); ok {
			return nil
		}
	}
}
