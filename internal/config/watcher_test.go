package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/hapi-gw/hapi/internal/bus"
	hapicore "github.com/hapi-gw/hapi/internal/core"
	"github.com/hapi-gw/hapi/internal/corehandler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcher_reloadAddsAndRemovesRoutes(t *testing.T) {
	b := bus.New(32)
	h := corehandler.New(hapicore.NewContext(), b, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	path := writeSettings(t, `{
		"ip_address": "127.0.0.1",
		"port": 3000,
		"routes": [
			{ "id": "r1", "name": "r1", "methods": ["GET"], "paths": ["/x"], "upstreams": ["a:1"] }
		]
	}`)

	w := NewWatcher(path, b, testLogger(), nil)

	w.reload()

	client := bus.NewClient(b)
	require.Eventually(t, func() bool {
		routes, err := client.LookupAllRoutes()
		require.NoError(t, err)
		return len(routes) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{
		"ip_address": "127.0.0.1",
		"port": 3000,
		"routes": [
			{ "id": "r2", "name": "r2", "methods": ["GET"], "paths": ["/y"], "upstreams": ["b:2"] }
		]
	}`), 0o644))

	w.reload()

	require.Eventually(t, func() bool {
		routes, err := client.LookupAllRoutes()
		require.NoError(t, err)
		if len(routes) != 1 {
			return false
		}
		return routes[0].ID == "r2"
	}, time.Second, 5*time.Millisecond)
}

func TestWatcher_malformedReloadKeepsPreviousRoutes(t *testing.T) {
	b := bus.New(32)
	h := corehandler.New(hapicore.NewContext(), b, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	path := writeSettings(t, `{
		"ip_address": "127.0.0.1",
		"port": 3000,
		"routes": [
			{ "id": "r1", "name": "r1", "methods": ["GET"], "paths": ["/x"], "upstreams": ["a:1"] }
		]
	}`)
	w := NewWatcher(path, b, testLogger(), nil)
	w.reload()

	client := bus.NewClient(b)
	require.Eventually(t, func() bool {
		routes, err := client.LookupAllRoutes()
		require.NoError(t, err)
		return len(routes) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{ not json`), 0o644))
	w.reload()

	routes, err := client.LookupAllRoutes()
	require.NoError(t, err)
	assert.Len(t, routes, 1)
	assert.Equal(t, "r1", routes[0].ID)
}
