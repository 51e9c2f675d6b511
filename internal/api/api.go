// Package api implements the management listener (§4.9): a JSON HTTP API
// over the bus, never touching the routing Context directly.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hapi-gw/hapi/internal/bus"
	hapicore "github.com/hapi-gw/hapi/internal/core"
	"github.com/hapi-gw/hapi/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the management API.
type Handler struct {
	client *bus.Client
	log    *slog.Logger
}

// New builds a Handler and wires its routes, including /metrics against
// reg, into a ready-to-serve mux.
func New(b *bus.Bus, log *slog.Logger, reg prometheus.Gatherer) http.Handler {
	h := &Handler{client: bus.NewClient(b), log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /routes", h.listRoutes)
	mux.HandleFunc("GET /routes/{id}", h.getRoute)
	mux.HandleFunc("POST /routes", h.addRoute)
	mux.HandleFunc("DELETE /routes/{id}", h.removeRoute)
	mux.HandleFunc("GET /upstreams", h.listUpstreams)
	mux.HandleFunc("GET /stats", h.listStats)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) listRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.client.LookupAllRoutes()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	dtos := make([]wire.RouteDTO, len(routes))
	for i, route := range routes {
		dtos[i] = wire.FromRoute(route)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) getRoute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	route, ok, err := h.client.LookupRoute(id)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromRoute(route))
}

func (h *Handler) addRoute(w http.ResponseWriter, r *http.Request) {
	var dto wire.RouteDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	route, err := dto.ToRoute()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := h.client.AddRoute(route); err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, hapicore.ErrRouteAlreadyExists) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) removeRoute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	route, err := h.client.RemoveRoute(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, hapicore.ErrRouteNotExists) {
			status = http.StatusNotFound
		}
		w.WriteHeader(status)
		return
	}
	writeJSON(w, http.StatusOK, wire.FromRoute(route))
}

func (h *Handler) listUpstreams(w http.ResponseWriter, r *http.Request) {
	ups, err := h.client.LookupAllUpstreams()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	addrs := make([]string, len(ups))
	for i, u := range ups {
		addrs[i] = u.Address.String()
	}
	writeJSON(w, http.StatusOK, addrs)
}

func (h *Handler) listStats(w http.ResponseWriter, r *http.Request) {
	rows, err := h.client.LookupStats()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
