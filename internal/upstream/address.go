// Package upstream implements the backend address model and the
// load-balancing strategies a route can pick an upstream with.
package upstream

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Address identifies a backend server, either by hostname or by a raw IPv4
// address. It is a tagged variant: exactly one of fqdn or ip is set,
// tracked by kind.
type Address struct {
	kind addressKind
	fqdn string
	ip   [4]byte
	port uint16
}

type addressKind int

const (
	kindFQDN addressKind = iota
	kindIPv4
)

// defaultPort is used when an IPv4 address is constructed with port 0.
const defaultPort uint16 = 80

// NewFQDNAddress builds an Address backed by a hostname, e.g. "api.internal:8080".
func NewFQDNAddress(hostPort string) Address {
	return Address{kind: kindFQDN, fqdn: hostPort}
}

// NewIPv4Address builds an Address from four octets and a port. A zero port
// defaults to 80, matching the original gateway's behavior.
func NewIPv4Address(o1, o2, o3, o4 byte, port uint16) Address {
	if port == 0 {
		port = defaultPort
	}
	return Address{kind: kindIPv4, ip: [4]byte{o1, o2, o3, o4}, port: port}
}

// String renders the address in "host:port" form.
func (a Address) String() string {
	switch a.kind {
	case kindIPv4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.ip[0], a.ip[1], a.ip[2], a.ip[3], a.port)
	default:
		return a.fqdn
	}
}

// Equal reports whether two addresses refer to the same backend.
func (a Address) Equal(b Address) bool {
	return a == b
}

// octet matches a single decimal IPv4 octet: 0-255, no leading zeros.
const octet = `(\d|[1-9]\d|1\d\d|2[0-4]\d|25[0-5])`

var ipv4Pattern = regexp.MustCompile(`^` + octet + `(\.` + octet + `){3}(:\d+)?$`)

// ParseAddress parses an upstream string from a config file: either an
// IPv4 literal (optionally with a port) or an FQDN (host, optionally with
// a port). A missing port defaults to 80.
func ParseAddress(s string) (Address, error) {
	if !ipv4Pattern.MatchString(s) {
		return NewFQDNAddress(ensurePort(s)), nil
	}

	host, port, err := splitHostPort(s)
	if err != nil {
		return Address{}, err
	}
	parts := strings.Split(host, ".")
	octets := make([]byte, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return Address{}, fmt.Errorf("upstream: invalid IPv4 octet %q in %q", p, s)
		}
		octets[i] = byte(v)
	}
	return NewIPv4Address(octets[0], octets[1], octets[2], octets[3], port), nil
}

func splitHostPort(s string) (host string, port uint16, err error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return s, defaultPort, nil
	}
	host = s[:idx]
	n, err := strconv.Atoi(s[idx+1:])
	if err != nil || n <= 0 || n > 65535 {
		return "", 0, fmt.Errorf("upstream: invalid port in %q", s)
	}
	return host, uint16(n), nil
}

func ensurePort(s string) string {
	if strings.Contains(s, ":") {
		return s
	}
	return fmt.Sprintf("%s:%d", s, defaultPort)
}
