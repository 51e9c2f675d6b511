// Package stats aggregates request counts per (client, method, path,
// upstream) tuple by observing UpstreamWasFound events on the bus, and
// answers LookupStats commands with the accumulated table (§4.6). It also
// mirrors every increment into a Prometheus CounterVec with the same label
// set, exposed by internal/api's /metrics endpoint.
package stats

import (
	"context"
	"sync"

	"github.com/hapi-gw/hapi/internal/bus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

type key struct {
	client   string
	method   string
	path     string
	upstream string
}

// Aggregator owns the request-count table, guarded by mu since the event
// loop and the command loop run as independent goroutines.
type Aggregator struct {
	bus    *bus.Bus
	metric *prometheus.CounterVec

	mu     sync.Mutex
	counts map[key]uint64
}

// New builds an Aggregator and registers its CounterVec against reg. Pass
// prometheus.DefaultRegisterer to expose it on the default /metrics
// handler, or a fresh *prometheus.Registry in tests to avoid collisions
// between parallel test runs.
func New(b *bus.Bus, reg prometheus.Registerer) *Aggregator {
	metric := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "hapi",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Number of requests routed to an upstream, by client, method, path and upstream.",
	}, []string{"client", "method", "path", "upstream"})

	return &Aggregator{
		bus:    b,
		metric: metric,
		counts: make(map[key]uint64),
	}
}

// Run processes events and commands until ctx is canceled or the bus
// shuts down. The two subscriptions are serviced by independent goroutines
// under an errgroup, and Run returns once both have stopped. Each goroutine
// stops on ctx cancellation or on any receive error from its own
// subscription (closed or lagged); a lag stops only the lagged goroutine.
func (a *Aggregator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sub := a.bus.SubscribeEvents()
		defer sub.Unsubscribe()
		for {
			evt, err := sub.RecvCtx(ctx)
			if err != nil {
				return nil
			}
			a.observe(evt)
		}
	})

	g.Go(func() error {
		sub := a.bus.SubscribeCommands()
		defer sub.Unsubscribe()
		for {
			cmd, err := sub.RecvCtx(ctx)
			if err != nil {
				return nil
			}
			a.handleCommand(cmd)
		}
	})

	return g.Wait()
}

func (a *Aggregator) observe(evt bus.Event) {
	found, ok := evt.(bus.UpstreamWasFound)
	if !ok {
		return
	}
	k := key{client: found.Client, method: found.Method, path: found.Path, upstream: found.Address.String()}

	a.mu.Lock()
	a.counts[k]++
	a.mu.Unlock()

	a.metric.WithLabelValues(k.client, k.method, k.path, k.upstream).Inc()
}

func (a *Aggregator) handleCommand(cmd bus.Command) {
	lookup, ok := cmd.(bus.LookupStats)
	if !ok {
		return
	}

	a.mu.Lock()
	rows := make([]bus.StatRow, 0, len(a.counts))
	for k, count := range a.counts {
		rows = append(rows, bus.StatRow{
			Client:   k.client,
			Method:   k.method,
			Path:     k.path,
			Upstream: k.upstream,
			Count:    count,
		})
	}
	a.mu.Unlock()

	a.bus.SendEvent(bus.StatsWereFound{Meta: bus.Meta{ID: lookup.CorrelationID()}, Rows: rows})
}
