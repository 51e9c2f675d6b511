package core

import (
	"testing"

	"github.com/hapi-gw/hapi/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routeRoundRobin(id string, paths, methods []string, addrs ...string) Route {
	ups := make([]upstream.Upstream, len(addrs))
	for i, a := range addrs {
		ups[i] = upstream.New(upstream.NewFQDNAddress(a))
	}
	return NewRoute(id, id, methods, paths, upstream.NewRoundRobin(ups))
}

func routeAlwaysFirst(id string, paths, methods []string, addrs ...string) Route {
	ups := make([]upstream.Upstream, len(addrs))
	for i, a := range addrs {
		ups[i] = upstream.New(upstream.NewFQDNAddress(a))
	}
	return NewRoute(id, id, methods, paths, upstream.NewAlwaysFirst(ups))
}

// Scenario 1: round-robin over two.
func TestScenario_roundRobinOverTwo(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.AddRoute(routeRoundRobin("r1", []string{"/x"}, []string{"GET"}, "a:1", "b:2")))

	got := make([]string, 4)
	for i := range got {
		u, ok, err := ctx.UpstreamLookup("/x", "GET")
		require.NoError(t, err)
		require.True(t, ok)
		got[i] = u.Address.String()
	}
	assert.Equal(t, []string{"a:1", "b:2", "a:1", "b:2"}, got)
}

// Scenario 2: disable mid-rotation.
func TestScenario_disableMidRotation(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.AddRoute(routeRoundRobin("r1", []string{"/x"}, []string{"GET"}, "a:1", "b:2")))
	for i := 0; i < 4; i++ {
		ctx.UpstreamLookup("/x", "GET")
	}

	ctx.DisableUpstreamForAllRoutes(upstream.NewFQDNAddress("a:1"))
	got := make([]string, 3)
	for i := range got {
		u, ok, err := ctx.UpstreamLookup("/x", "GET")
		require.NoError(t, err)
		require.True(t, ok)
		got[i] = u.Address.String()
	}
	assert.Equal(t, []string{"b:2", "b:2", "b:2"}, got)

	ctx.EnableUpstreamForAllRoutes(upstream.NewFQDNAddress("a:1"))
	got2 := make([]string, 2)
	for i := range got2 {
		u, ok, err := ctx.UpstreamLookup("/x", "GET")
		require.NoError(t, err)
		require.True(t, ok)
		got2[i] = u.Address.String()
	}
	assert.Equal(t, []string{"a:1", "b:2"}, got2)
}

// Scenario 3: regex path match.
func TestScenario_regexPathMatch(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.AddRoute(routeAlwaysFirst("r1", []string{"^uri.*$"}, []string{"GET"}, "u20")))

	u, ok, err := ctx.UpstreamLookup("uri10", "GET")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u20", u.Address.String())

	_, ok, err = ctx.UpstreamLookup("uri10", "POST")
	require.NoError(t, err)
	assert.False(t, ok)
}

// Scenario 4: add/remove round-trip.
func TestScenario_addRemoveRoundTrip(t *testing.T) {
	ctx := NewContext()
	r := routeAlwaysFirst("r1", []string{"/x"}, []string{"GET"}, "a:1")

	require.NoError(t, ctx.AddRoute(r))
	assert.Len(t, ctx.GetAllRoutes(), 1)

	removed, err := ctx.RemoveRoute("r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", removed.ID)

	assert.Empty(t, ctx.GetAllRoutes())
	assert.Empty(t, ctx.GetAllUpstreams())

	_, err = ctx.RemoveRoute("r1")
	assert.ErrorIs(t, err, ErrRouteNotExists)
}

func TestAddRoute_duplicateIDFails(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.AddRoute(routeAlwaysFirst("r1", []string{"/x"}, []string{"GET"}, "a:1")))

	err := ctx.AddRoute(routeAlwaysFirst("r1", []string{"/y"}, []string{"POST"}, "b:2"))
	assert.ErrorIs(t, err, ErrRouteAlreadyExists)
	assert.Len(t, ctx.GetAllRoutes(), 1)
}

func TestUpstreamLookup_noMatch(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.AddRoute(routeAlwaysFirst("r1", []string{"/x"}, []string{"GET"}, "a:1")))

	_, ok, err := ctx.UpstreamLookup("/nope", "GET")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpstreamLookup_emptyPathAndMethod(t *testing.T) {
	ctx := NewContext()
	_, ok, err := ctx.UpstreamLookup("", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpstreamLookup_matchButAllDisabled(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.AddRoute(routeAlwaysFirst("r1", []string{"/x"}, []string{"GET"}, "a:1")))
	ctx.DisableUpstreamForAllRoutes(upstream.NewFQDNAddress("a:1"))

	_, ok, err := ctx.UpstreamLookup("/x", "GET")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetAllUpstreams_deduplicates(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.AddRoute(routeAlwaysFirst("r1", []string{"/x"}, []string{"GET"}, "a:1", "b:2")))
	require.NoError(t, ctx.AddRoute(routeAlwaysFirst("r2", []string{"/y"}, []string{"GET"}, "a:1")))

	assert.Len(t, ctx.GetAllUpstreams(), 2)
}

func TestEmptySequenceOfAddRemove_leavesContextEmpty(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.AddRoute(routeAlwaysFirst("r1", []string{"/x"}, []string{"GET"}, "a:1")))
	require.NoError(t, ctx.AddRoute(routeAlwaysFirst("r2", []string{"/y"}, []string{"GET"}, "b:2")))
	_, err := ctx.RemoveRoute("r1")
	require.NoError(t, err)
	_, err = ctx.RemoveRoute("r2")
	require.NoError(t, err)

	assert.Empty(t, ctx.GetAllRoutes())
	assert.Empty(t, ctx.routeIndex)
	assert.Empty(t, ctx.routingTable)
}

func TestInvalidRegexp_returnsCannotCreateRegexpNotPanic(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.AddRoute(routeAlwaysFirst("r1", []string{"["}, []string{"GET"}, "a:1")))

	_, _, err := ctx.UpstreamLookup("anything", "GET")
	require.Error(t, err)
	var reErr *RegexpError
	assert.ErrorAs(t, err, &reErr)
}

func TestRegexFallback_declarationOrderFirstMatchWins(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.AddRoute(routeAlwaysFirst("first", []string{"^.*$"}, []string{"GET"}, "a:1")))
	require.NoError(t, ctx.AddRoute(routeAlwaysFirst("second", []string{"^.*$"}, []string{"GET"}, "b:2")))

	u, ok, err := ctx.UpstreamLookup("/anything", "GET")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a:1", u.Address.String())
}
