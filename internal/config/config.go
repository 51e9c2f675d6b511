// Package config loads Hapi's JSON settings file (§6), converts its wire
// DTOs into the domain types internal/core and internal/upstream operate
// on, and watches the file for changes so routes can be hot-reloaded
// without a restart.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	hapicore "github.com/hapi-gw/hapi/internal/core"
	"github.com/hapi-gw/hapi/internal/supervisor"
	"github.com/hapi-gw/hapi/internal/upstream"
	"github.com/hapi-gw/hapi/internal/wire"
)

// defaultPollIntervalMs, defaultErrorCount, defaultSuccessCount match the
// original gateway's Probe::default.
const (
	defaultPollIntervalMs = 1000
	defaultErrorCount     = 5
	defaultSuccessCount   = 5
)

// probeDTO is the wire shape of one probe override entry.
type probeDTO struct {
	UpstreamAddress string `json:"upstream_address"`
	PollIntervalMs  uint64 `json:"poll_interval_ms"`
	ErrorCount      int    `json:"error_count"`
	SuccessCount    int    `json:"success_count"`
}

// Settings is the fully-loaded configuration file.
type Settings struct {
	IPAddress    string          `json:"ip_address"`
	Port         uint16          `json:"port"`
	APIIPAddress string          `json:"api_ip_address,omitempty"`
	APIPort      uint16          `json:"api_port,omitempty"`
	Routes       []wire.RouteDTO `json:"routes"`
	Probes       []probeDTO      `json:"probes,omitempty"`
}

// Load reads and parses the settings file at path, applying the
// api_ip_address/api_port defaults (fall back to ip_address/port+1 when
// omitted, per the original's single-listener-plus-one convention).
func Load(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if s.APIIPAddress == "" {
		s.APIIPAddress = s.IPAddress
	}
	if s.APIPort == 0 {
		s.APIPort = s.Port + 1
	}
	return &s, nil
}

// ServerAddress is the data-plane listener's "ip:port".
func (s *Settings) ServerAddress() string {
	return fmt.Sprintf("%s:%d", s.IPAddress, s.Port)
}

// APIAddress is the management listener's "ip:port".
func (s *Settings) APIAddress() string {
	return fmt.Sprintf("%s:%d", s.APIIPAddress, s.APIPort)
}

// ToRoutes converts every route DTO into a domain Route, in file order.
func (s *Settings) ToRoutes() ([]hapicore.Route, error) {
	routes := make([]hapicore.Route, 0, len(s.Routes))
	for _, r := range s.Routes {
		route, err := r.ToRoute()
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// ToProbeConfigs converts the optional probes array into the per-address
// overrides internal/supervisor accepts. Addresses absent from this map
// use the supervisor's own defaults.
func (s *Settings) ToProbeConfigs() (map[upstream.Address]supervisor.Config, error) {
	configs := make(map[upstream.Address]supervisor.Config, len(s.Probes))
	for _, p := range s.Probes {
		addr, err := upstream.ParseAddress(p.UpstreamAddress)
		if err != nil {
			return nil, fmt.Errorf("config: probe %q: %w", p.UpstreamAddress, err)
		}
		pollMs := p.PollIntervalMs
		if pollMs == 0 {
			pollMs = defaultPollIntervalMs
		}
		errCount := p.ErrorCount
		if errCount == 0 {
			errCount = defaultErrorCount
		}
		successCount := p.SuccessCount
		if successCount == 0 {
			successCount = defaultSuccessCount
		}
		configs[addr] = supervisor.Config{
			PollInterval:     time.Duration(pollMs) * time.Millisecond,
			ErrorThreshold:   errCount,
			SuccessThreshold: successCount,
		}
	}
	return configs, nil
}
