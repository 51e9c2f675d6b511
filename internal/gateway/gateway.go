// Package gateway implements the data-plane request path (§4.8): resolve
// an incoming request to an upstream over the bus, then forward it
// verbatim and relay the response back to the caller.
package gateway

import (
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/hapi-gw/hapi/internal/bus"
)

// Processor is the data-plane HTTP handler.
type Processor struct {
	client         *bus.Client
	log            *slog.Logger
	upstreamClient *http.Client
}

// New builds a Processor that issues lookups against b and forwards
// requests with httpClient. Pass nil for httpClient to use
// http.DefaultClient.
func New(b *bus.Bus, log *slog.Logger, httpClient *http.Client) *Processor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Processor{client: bus.NewClient(b), log: log, upstreamClient: httpClient}
}

// ServeHTTP implements the request processor described in §4.8.
func (p *Processor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := remoteIP(r)

	addr, ok, err := p.client.LookupUpstream(clientIP, r.URL.Path, r.Method)
	if err != nil {
		p.log.Warn("upstream lookup failed", "error", err)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	upstreamURL := *r.URL
	upstreamURL.Scheme = "http"
	upstreamURL.Host = addr.String()

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL.String(), r.Body)
	if err != nil {
		p.log.Warn("failed to build upstream request", "error", err)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	outReq.Header = r.Header.Clone()
	outReq.Host = addr.String()

	resp, err := p.upstreamClient.Do(outReq)
	if err != nil {
		p.log.Warn("upstream request failed", "upstream", addr.String(), "error", err)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.log.Warn("failed to relay upstream response body", "upstream", addr.String(), "error", err)
	}
}

// remoteIP extracts the caller's IP, string form, from the request's
// remote address.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
