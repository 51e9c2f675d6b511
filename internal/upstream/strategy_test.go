package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledUpstreams(enabled ...bool) []Upstream {
	out := make([]Upstream, len(enabled))
	for i, e := range enabled {
		out[i] = Upstream{Address: NewFQDNAddress("host"), Enabled: e}
	}
	return out
}

func TestAlwaysFirst_picksFirstEnabled(t *testing.T) {
	s := NewAlwaysFirst(enabledUpstreams(false, true, true))
	got, ok := s.Next()
	assert.True(t, ok)
	assert.Equal(t, s.GetUpstreams()[1], got)
}

func TestAlwaysFirst_allDisabled(t *testing.T) {
	s := NewAlwaysFirst(enabledUpstreams(false, false))
	_, ok := s.Next()
	assert.False(t, ok)
}

func TestRoundRobin_cyclesThroughEnabled(t *testing.T) {
	ups := enabledUpstreams(true, true, true)
	s := NewRoundRobin(ups)

	for i := 0; i < 3; i++ {
		got, ok := s.Next()
		assert.True(t, ok)
		assert.Equal(t, ups[i], got)
	}

	wrapped, ok := s.Next()
	assert.True(t, ok)
	assert.Equal(t, ups[0], wrapped)
}

func TestRoundRobin_skipsDisabled(t *testing.T) {
	ups := enabledUpstreams(true, false, true)
	s := NewRoundRobin(ups)

	got, ok := s.Next()
	assert.True(t, ok)
	assert.Equal(t, ups[0], got)

	got, ok = s.Next()
	assert.True(t, ok)
	assert.Equal(t, ups[2], got)

	got, ok = s.Next()
	assert.True(t, ok)
	assert.Equal(t, ups[0], got)
}

func TestRoundRobin_allDisabled(t *testing.T) {
	s := NewRoundRobin(enabledUpstreams(false, false, false))
	_, ok := s.Next()
	assert.False(t, ok)
}

func TestRoundRobin_disableMidRotation(t *testing.T) {
	a := NewFQDNAddress("a:1")
	b := NewFQDNAddress("b:2")
	s := NewRoundRobin([]Upstream{New(a), New(b)})

	seq := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			got, ok := s.Next()
			if !ok {
				out[i] = "none"
				continue
			}
			out[i] = got.Address.String()
		}
		return out
	}

	assert.Equal(t, []string{"a:1", "b:2", "a:1", "b:2"}, seq(4))

	s.Disable(a)
	assert.Equal(t, []string{"b:2", "b:2", "b:2"}, seq(3))

	s.Enable(a)
	assert.Equal(t, []string{"a:1", "b:2"}, seq(2))
}

func TestAddress_ipv4DefaultPort(t *testing.T) {
	addr := NewIPv4Address(10, 0, 0, 1, 0)
	assert.Equal(t, "10.0.0.1:80", addr.String())
}

func TestAddress_ipv4ExplicitPort(t *testing.T) {
	addr := NewIPv4Address(10, 0, 0, 1, 9000)
	assert.Equal(t, "10.0.0.1:9000", addr.String())
}

func TestAddress_fqdn(t *testing.T) {
	addr := NewFQDNAddress("api.internal:8080")
	assert.Equal(t, "api.internal:8080", addr.String())
}

func TestParseAddress_ipv4WithPort(t *testing.T) {
	addr, err := ParseAddress("10.0.0.1:9000")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:9000", addr.String())
}

func TestParseAddress_ipv4DefaultsPort(t *testing.T) {
	addr, err := ParseAddress("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:80", addr.String())
}

func TestParseAddress_fqdnDefaultsPort(t *testing.T) {
	addr, err := ParseAddress("api.internal")
	require.NoError(t, err)
	assert.Equal(t, "api.internal:80", addr.String())
}

func TestParseAddress_fqdnWithPort(t *testing.T) {
	addr, err := ParseAddress("api.internal:8080")
	require.NoError(t, err)
	assert.Equal(t, "api.internal:8080", addr.String())
}

func TestParseAddress_outOfRangeOctetFallsBackToFQDN(t *testing.T) {
	_, err := ParseAddress("999.0.0.1")
	// 999 never matches the IPv4 pattern, so this falls through to FQDN
	// parsing instead of erroring — matching the spec's regex-or-FQDN rule.
	require.NoError(t, err)
}

func TestParseAddress_rejectsInvalidPort(t *testing.T) {
	_, err := ParseAddress("10.0.0.1:99999")
	assert.Error(t, err)
}
