package api

import (
	"errors"
	"net/http"
	"strconv"

	"drone-flight/registry/internal/ledger"
	"drone-flight/registry/internal/models/dtos"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

// DroneID handles GET /api/ledger/droneId
func (h *Handlers) DroneID() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := h.deps.Services.Ledger
		respondJSON(w, http.StatusOK, dtos.DroneIDResponse{
			DroneID:  l.DroneID(r.Context()),
			Contract: l.Address().Hex(),
			ChainID:  l.ChainID(),
		})
	}
}

// LedgerEvents handles GET /api/ledger/events?from=&limit=
func (h *Handlers) LedgerEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := parseUintParam(r, "from", 1)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "from must be a non-negative integer")
			return
		}
		limit, err := parseUintParam(r, "limit", 100)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}

		events, err := h.deps.Services.Ledger.Events(r.Context(), from, int(min(limit, 500)))
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := dtos.LedgerEventsResponse{Events: events}
		if resp.Events == nil {
			resp.Events = []ledger.Event{}
		}
		if n := len(events); n > 0 && events[n-1].FlightID < h.deps.Services.Ledger.DroneID(r.Context()) {
			resp.Next = events[n-1].FlightID + 1
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

// Receipt handles GET /api/ledger/tx/{hash}
func (h *Handlers) Receipt() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "hash")
		if len(raw) != 2+2*common.HashLength || !isHex(raw[2:]) || raw[:2] != "0x" {
			respondWithError(w, http.StatusBadRequest, "Invalid transaction hash")
			return
		}

		ev, err := h.deps.Services.Ledger.Receipt(r.Context(), common.HexToHash(raw))
		if errors.Is(err, ledger.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, ev)
	}
}

// RegistrantEvents handles GET /api/ledger/registrants/{address}/events,
// served from the consumer-side index.
func (h *Handlers) RegistrantEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index := h.deps.Repo.Index
		if index == nil {
			respondWithError(w, http.StatusServiceUnavailable, "Event index is not configured")
			return
		}

		addr := chi.URLParam(r, "address")
		if !common.IsHexAddress(addr) {
			respondWithError(w, http.StatusBadRequest, "Invalid registrant address")
			return
		}

		rows, err := index.ByRegistrant(r.Context(), common.HexToAddress(addr).Hex())
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"events": rows})
	}
}

func parseUintParam(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
