// Package wire holds the JSON wire shape of a Route and its conversions
// to and from the domain type, shared by the settings loader and the
// management API so both read and write the same shape. Grounded on the
// original's serializable_model::Route, which played the same role there.
package wire

import (
	"fmt"

	hapicore "github.com/hapi-gw/hapi/internal/core"
	"github.com/hapi-gw/hapi/internal/upstream"
)

// RouteDTO is a route exactly as it appears in the settings file or in a
// management API request/response body.
type RouteDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Methods   []string `json:"methods"`
	Paths     []string `json:"paths"`
	Strategy  string   `json:"strategy"`
	Upstreams []string `json:"upstreams"`
}

// ToRoute converts a RouteDTO into the domain Route it describes.
func (dto RouteDTO) ToRoute() (hapicore.Route, error) {
	upstreams := make([]upstream.Upstream, 0, len(dto.Upstreams))
	for _, addrStr := range dto.Upstreams {
		addr, err := upstream.ParseAddress(addrStr)
		if err != nil {
			return hapicore.Route{}, fmt.Errorf("wire: route %q: %w", dto.ID, err)
		}
		upstreams = append(upstreams, upstream.New(addr))
	}

	var strategy upstream.Strategy
	switch dto.Strategy {
	case "RoundRobin":
		strategy = upstream.NewRoundRobin(upstreams)
	case "AlwaysFirst", "":
		strategy = upstream.NewAlwaysFirst(upstreams)
	default:
		return hapicore.Route{}, fmt.Errorf("wire: route %q: unknown strategy %q", dto.ID, dto.Strategy)
	}

	return hapicore.NewRoute(dto.ID, dto.Name, dto.Methods, dto.Paths, strategy), nil
}

// FromRoute converts a domain Route into its wire representation.
func FromRoute(r hapicore.Route) RouteDTO {
	ups := r.GetUpstreams()
	addrs := make([]string, len(ups))
	for i, u := range ups {
		addrs[i] = u.Address.String()
	}
	return RouteDTO{
		ID:        r.ID,
		Name:      r.Name,
		Methods:   r.Methods,
		Paths:     r.Paths,
		Strategy:  r.StrategyKind().String(),
		Upstreams: addrs,
	}
}
