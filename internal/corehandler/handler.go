// Package corehandler runs the routing core as a bus subscriber: it owns
// the single Context instance, consumes Commands, and emits the
// correlated Events. Per §5, Context is owned by exactly one goroutine —
// this loop is that goroutine — and is never shared or locked.
package corehandler

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hapi-gw/hapi/internal/bus"
	hapicore "github.com/hapi-gw/hapi/internal/core"
)

// Handler runs the routing-core loop over a bus subscription.
type Handler struct {
	ctx *hapicore.Context
	bus *bus.Bus
	log *slog.Logger
}

// New builds a Handler that owns ctx. Routes are added to it with
// SeedRoutes before Run, or with AddRoute commands once Run is running.
func New(ctx *hapicore.Context, b *bus.Bus, log *slog.Logger) *Handler {
	return &Handler{ctx: ctx, bus: b, log: log}
}

// SeedRoutes adds routes to the Context and emits one RouteWasAdded event
// per route, mirroring the startup sequence in §2: the routing core loads
// its initial routes and announces each one so the probe supervisor can
// start probing its upstreams.
func (h *Handler) SeedRoutes(routes []hapicore.Route) error {
	for _, r := range routes {
		if err := h.ctx.AddRoute(r); err != nil {
			return err
		}
		h.bus.SendEvent(bus.RouteWasAdded{Meta: bus.Meta{ID: uuid.NewString()}, Route: r})
	}
	return nil
}

// Run subscribes to commands and processes them until ctx is canceled or
// the bus shuts down.
func (h *Handler) Run(ctx context.Context) error {
	sub := h.bus.SubscribeCommands()
	defer sub.Unsubscribe()

	for {
		cmd, err := sub.RecvCtx(ctx)
		if err != nil {
			return nil
		}
		h.handle(cmd)
	}
}

func (h *Handler) handle(cmd bus.Command) {
	switch c := cmd.(type) {
	case bus.LookupUpstream:
		h.handleLookupUpstream(c)
	case bus.AddRoute:
		h.handleAddRoute(c)
	case bus.RemoveRoute:
		h.handleRemoveRoute(c)
	case bus.EnableUpstream:
		h.ctx.EnableUpstreamForAllRoutes(c.Address)
		h.bus.SendEvent(bus.UpstreamWasEnabled{Meta: bus.Meta{ID: c.CorrelationID()}, Address: c.Address})
	case bus.DisableUpstream:
		h.ctx.DisableUpstreamForAllRoutes(c.Address)
		h.bus.SendEvent(bus.UpstreamWasDisabled{Meta: bus.Meta{ID: c.CorrelationID()}, Address: c.Address})
	case bus.LookupRoute:
		h.handleLookupRoute(c)
	case bus.LookupAllRoutes:
		h.bus.SendEvent(bus.RoutesWereFound{Meta: bus.Meta{ID: c.CorrelationID()}, Routes: h.ctx.GetAllRoutes()})
	case bus.LookupAllUpstreams:
		h.bus.SendEvent(bus.UpstreamsWereFound{Meta: bus.Meta{ID: c.CorrelationID()}, Upstreams: h.ctx.GetAllUpstreams()})
	}
}

func (h *Handler) handleLookupUpstream(c bus.LookupUpstream) {
	meta := bus.Meta{ID: c.CorrelationID()}
	u, ok, err := h.ctx.UpstreamLookup(c.Path, c.Method)
	if err != nil {
		h.log.Warn("upstream lookup failed", "path", c.Path, "method", c.Method, "error", err)
		h.bus.SendEvent(bus.UpstreamWasNotFound{Meta: meta})
		return
	}
	if !ok {
		h.bus.SendEvent(bus.UpstreamWasNotFound{Meta: meta})
		return
	}
	h.bus.SendEvent(bus.UpstreamWasFound{
		Meta:    meta,
		Client:  c.Client,
		Path:    c.Path,
		Method:  c.Method,
		Address: u.Address,
	})
}

func (h *Handler) handleAddRoute(c bus.AddRoute) {
	meta := bus.Meta{ID: c.CorrelationID()}
	if err := h.ctx.AddRoute(c.Route); err != nil {
		h.bus.SendEvent(bus.RouteWasNotAdded{Meta: meta, Err: err})
		return
	}
	h.bus.SendEvent(bus.RouteWasAdded{Meta: meta, Route: c.Route})
}

func (h *Handler) handleRemoveRoute(c bus.RemoveRoute) {
	meta := bus.Meta{ID: c.CorrelationID()}
	removed, err := h.ctx.RemoveRoute(c.RouteID)
	if err != nil {
		h.bus.SendEvent(bus.RouteWasNotRemoved{Meta: meta, Err: err})
		return
	}
	h.bus.SendEvent(bus.RouteWasRemoved{Meta: meta, Route: removed})
}

func (h *Handler) handleLookupRoute(c bus.LookupRoute) {
	meta := bus.Meta{ID: c.CorrelationID()}
	r, err := h.ctx.GetRouteByID(c.RouteID)
	if err != nil {
		h.bus.SendEvent(bus.RouteWasNotFound{Meta: meta})
		return
	}
	h.bus.SendEvent(bus.RouteWasFound{Meta: meta, Route: r})
}
