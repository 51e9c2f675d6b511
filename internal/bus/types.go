// Package bus implements the process-wide Command/Event broadcast channels
// that connect the routing core, the probe supervisor, the stats
// aggregator, the data-plane processor, and the management API. Subsystems
// never call each other directly; every cross-subsystem interaction is a
// Command sent on the bus and an Event observed from it.
package bus

import (
	"github.com/hapi-gw/hapi/internal/core"
	"github.com/hapi-gw/hapi/internal/upstream"
)

// Command is the set of control-plane verbs a subsystem or an issuer can
// send on the bus.
type Command interface {
	CorrelationID() string
}

// Event is a fact emitted by a command handler in response to a Command,
// or as a side effect of processing one. An Event produced for a Command
// echoes that Command's CorrelationID; the RouteWasAdded events that
// corehandler's SeedRoutes sends at startup carry a fresh id instead.
type Event interface {
	CorrelationID() string
}

type Meta struct {
	ID string
}

func (m Meta) CorrelationID() string { return m.ID }

// --- Commands ---

type LookupUpstream struct {
	Meta
	Client string
	Path   string
	Method string
}

type EnableUpstream struct {
	Meta
	Address upstream.Address
}

type DisableUpstream struct {
	Meta
	Address upstream.Address
}

type AddRoute struct {
	Meta
	Route core.Route
}

type RemoveRoute struct {
	Meta
	RouteID string
}

type LookupRoute struct {
	Meta
	RouteID string
}

type LookupAllRoutes struct {
	Meta
}

type LookupAllUpstreams struct {
	Meta
}

type LookupStats struct {
	Meta
}

// --- Events ---

type UpstreamWasFound struct {
	Meta
	Client  string
	Path    string
	Method  string
	Address upstream.Address
}

type UpstreamWasNotFound struct {
	Meta
}

type UpstreamWasEnabled struct {
	Meta
	Address upstream.Address
}

type UpstreamWasDisabled struct {
	Meta
	Address upstream.Address
}

type RouteWasAdded struct {
	Meta
	Route core.Route
}

type RouteWasNotAdded struct {
	Meta
	Err error
}

type RouteWasRemoved struct {
	Meta
	Route core.Route
}

type RouteWasNotRemoved struct {
	Meta
	Err error
}

type RouteWasFound struct {
	Meta
	Route core.Route
}

type RouteWasNotFound struct {
	Meta
}

type RoutesWereFound struct {
	Meta
	Routes []core.Route
}

type UpstreamsWereFound struct {
	Meta
	Upstreams []upstream.Upstream
}

type StatRow struct {
	Client   string
	Method   string
	Path     string
	Upstream string
	Count    uint64
}

type StatsWereFound struct {
	Meta
	Rows []StatRow
}
