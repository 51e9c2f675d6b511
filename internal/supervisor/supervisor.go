// Package supervisor runs exactly one health-check task per distinct
// upstream address currently referenced by at least one route, reacting
// to RouteWasAdded/RouteWasRemoved events and reference-counting against
// routes (§4.5).
package supervisor

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hapi-gw/hapi/internal/bus"
	"github.com/hapi-gw/hapi/internal/probe"
	"github.com/hapi-gw/hapi/internal/upstream"
)

// defaultPollInterval, defaultErrorThreshold and defaultSuccessThreshold
// match the original gateway's Probe::default.
const (
	defaultPollInterval     = time.Second
	defaultErrorThreshold   = 5
	defaultSuccessThreshold = 5
)

// Config is a per-upstream probe configuration, optionally supplied at
// startup (§6's "probes" array). Addresses not present here use the
// defaults above.
type Config struct {
	PollInterval     time.Duration
	ErrorThreshold   int
	SuccessThreshold int
}

// Dialer opens a TCP connection to addr, honoring ctx's deadline. Exists so
// tests can substitute a fake without touching the network.
type Dialer func(ctx context.Context, addr string) error

func dialTCP(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

type probeTask struct {
	cancel   context.CancelFunc
	refcount int
}

// Supervisor owns the probe registry: one entry per distinct upstream
// address, alive iff refcount >= 1. Only the loop started by Run changes
// the registry; probes is guarded by mu, so tests can inspect it while Run
// is running.
type Supervisor struct {
	bus     *bus.Bus
	client  *bus.Client
	log     *slog.Logger
	configs map[upstream.Address]Config
	dial    Dialer
	sub     *bus.Subscription[bus.Event]

	mu     sync.Mutex
	probes map[upstream.Address]*probeTask
	wg     sync.WaitGroup
}

// New builds a Supervisor and, crucially, subscribes to events immediately
// rather than waiting for Run: the routing core emits one RouteWasAdded
// per startup route before any subsystem goroutine is started (§4.2/§4.5),
// and the bus has no replay buffer for subscribers that join late (§4.7).
// Callers must construct the Supervisor before seeding those routes, or
// every startup upstream silently never gets a probe.
func New(b *bus.Bus, log *slog.Logger, configs map[upstream.Address]Config) *Supervisor {
	return &Supervisor{
		bus:     b,
		client:  bus.NewClient(b),
		log:     log,
		configs: configs,
		dial:    dialTCP,
		sub:     b.SubscribeEvents(),
		probes:  make(map[upstream.Address]*probeTask),
	}
}

// Run spawns/cancels probe tasks off the subscription opened in New until
// ctx is canceled or the bus shuts down. It blocks until every spawned
// probe task has exited.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.sub.Unsubscribe()

	for {
		evt, err := s.sub.RecvCtx(ctx)
		if err != nil {
			s.shutdownAll()
			s.wg.Wait()
			return nil
		}
		s.handle(ctx, evt)
	}
}

func (s *Supervisor) handle(ctx context.Context, evt bus.Event) {
	switch e := evt.(type) {
	case bus.RouteWasAdded:
		for _, u := range e.Route.GetUpstreams() {
			s.addRef(ctx, u.Address)
		}
	case bus.RouteWasRemoved:
		for _, u := range e.Route.GetUpstreams() {
			s.removeRef(u.Address)
		}
	}
}

// addRef increments addr's refcount, spawning a probe task on 0 -> 1.
func (s *Supervisor) addRef(ctx context.Context, addr upstream.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.probes[addr]
	if exists {
		t.refcount++
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	s.probes[addr] = &probeTask{cancel: cancel, refcount: 1}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.probeLoop(taskCtx, addr)
	}()
}

// removeRef decrements addr's refcount, canceling its probe task when it
// hits 0. A route listing addr more than once calls this once per
// occurrence, matching the multiplicity addRef was called with on the
// corresponding RouteWasAdded.
func (s *Supervisor) removeRef(addr upstream.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.probes[addr]
	if !exists {
		return
	}
	t.refcount--
	if t.refcount <= 0 {
		t.cancel()
		delete(s.probes, addr)
	}
}

func (s *Supervisor) shutdownAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, t := range s.probes {
		t.cancel()
		delete(s.probes, addr)
	}
}

func (s *Supervisor) configFor(addr upstream.Address) Config {
	if c, ok := s.configs[addr]; ok {
		cfg := c
		if cfg.PollInterval == 0 {
			cfg.PollInterval = defaultPollInterval
		}
		if cfg.ErrorThreshold == 0 {
			cfg.ErrorThreshold = defaultErrorThreshold
		}
		if cfg.SuccessThreshold == 0 {
			cfg.SuccessThreshold = defaultSuccessThreshold
		}
		return cfg
	}
	return Config{
		PollInterval:     defaultPollInterval,
		ErrorThreshold:   defaultErrorThreshold,
		SuccessThreshold: defaultSuccessThreshold,
	}
}

// probeLoop is the per-upstream probe task: sleep, TCP-connect with a
// timeout equal to the poll interval, feed a Poller, and emit
// Enable/DisableUpstream on a debounced transition. It is cancellable at
// any suspension point and releases its socket promptly on cancellation
// because dialTCP's context carries the same deadline.
func (s *Supervisor) probeLoop(ctx context.Context, addr upstream.Address) {
	cfg := s.configFor(addr)
	poller := probe.New(cfg.ErrorThreshold, cfg.SuccessThreshold)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		dialCtx, cancel := context.WithTimeout(ctx, cfg.PollInterval)
		err := s.dial(dialCtx, addr.String())
		cancel()

		if ctx.Err() != nil {
			return
		}

		if err != nil {
			if poller.TickFailure() {
				s.log.Info("upstream marked down", "upstream", addr.String())
				if derr := s.client.DisableUpstream(addr); derr != nil {
					s.log.Warn("failed to disable upstream", "upstream", addr.String(), "error", derr)
				}
			}
			continue
		}
		if poller.TickSuccess() {
			s.log.Info("upstream marked up", "upstream", addr.String())
			if eerr := s.client.EnableUpstream(addr); eerr != nil {
				s.log.Warn("failed to enable upstream", "upstream", addr.String(), "error", eerr)
			}
		}
	}
}
